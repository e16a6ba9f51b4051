package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 10 * time.Hour

// ErrMalformedToken is returned when a token cannot be decoded or carries no subject.
var ErrMalformedToken = errors.New("malformed token")

// TokenCodec issues and validates HS256 bearer tokens. It holds no mutable
// state after construction and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(tc *TokenCodec) {
		if now != nil {
			tc.now = now
		}
	}
}

// NewTokenCodec builds a codec signing with secret. A non-positive ttl falls back to ten hours.
func NewTokenCodec(secret string, ttl time.Duration, opts ...CodecOption) *TokenCodec {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	tc := &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// TTL returns the fixed token lifetime.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// Issue signs a token for subject, valid from now until now+TTL.
func (tc *TokenCodec) Issue(subject string) (string, time.Time, error) {
	now := tc.now()
	expiresAt := now.Add(tc.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, claims.ExpiresAt.Time, nil
}

// ExtractSubject decodes the subject without checking the signature. Callers
// must not trust the result until Validate succeeds.
func (tc *TokenCodec) ExtractSubject(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", errors.Join(ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return "", ErrMalformedToken
	}
	return claims.Subject, nil
}

// Validate reports whether tokenStr is signed with this codec's secret, names
// expectedSubject and has not expired. Every failure yields false.
func (tc *TokenCodec) Validate(tokenStr, expectedSubject string) bool {
	if expectedSubject == "" {
		return false
	}
	claims, err := tc.parse(tokenStr)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject
}

// Claims returns the verified claims of tokenStr.
func (tc *TokenCodec) Claims(tokenStr string) (*jwt.RegisteredClaims, error) {
	return tc.parse(tokenStr)
}

func (tc *TokenCodec) parse(tokenStr string) (*jwt.RegisteredClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(tc.now),
	)

	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return tc.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

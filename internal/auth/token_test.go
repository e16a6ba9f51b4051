package auth

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTokenCodecRoundTrip(t *testing.T) {
	codec := NewTokenCodec("secret", time.Hour)

	for _, subject := range []string{"alice@x.com", "bob@example.org", "ünïcode@example.com"} {
		token, _, err := codec.Issue(subject)
		require.NoError(t, err)

		got, err := codec.ExtractSubject(token)
		require.NoError(t, err)
		assert.Equal(t, subject, got)
		assert.True(t, codec.Validate(token, subject))
	}
}

func TestTokenCodecExpiry(t *testing.T) {
	clock := newFakeClock()
	codec := NewTokenCodec("secret", 30*time.Minute, WithClock(clock.Now))

	token, expiresAt, err := codec.Issue("alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*time.Minute), expiresAt)

	assert.True(t, codec.Validate(token, "alice@x.com"))

	clock.Advance(30*time.Minute - time.Second)
	assert.True(t, codec.Validate(token, "alice@x.com"))

	clock.Advance(time.Second)
	assert.False(t, codec.Validate(token, "alice@x.com"), "token must be invalid at issuedAt+ttl")

	subject, err := codec.ExtractSubject(token)
	require.NoError(t, err, "subject stays extractable after expiry")
	assert.Equal(t, "alice@x.com", subject)
}

func TestTokenCodecClaimsCarryTimestamps(t *testing.T) {
	clock := newFakeClock()
	codec := NewTokenCodec("secret", time.Hour, WithClock(clock.Now))

	token, _, err := codec.Issue("alice@x.com")
	require.NoError(t, err)

	claims, err := codec.Claims(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", claims.Subject)
	assert.Equal(t, clock.Now(), claims.IssuedAt.Time.UTC())
	assert.Equal(t, clock.Now().Add(time.Hour), claims.ExpiresAt.Time.UTC())
}

func TestTokenCodecValidateFailsClosed(t *testing.T) {
	codec := NewTokenCodec("secret", time.Hour)
	token, _, err := codec.Issue("alice@x.com")
	require.NoError(t, err)

	otherKey := NewTokenCodec("another-secret", time.Hour)
	foreign, _, err := otherKey.Issue("alice@x.com")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice@x.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice@x.com"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]struct {
		token   string
		subject string
	}{
		"wrong subject":       {token, "mallory@x.com"},
		"empty subject":       {token, ""},
		"foreign key":         {foreign, "alice@x.com"},
		"alg none":            {unsigned, "alice@x.com"},
		"missing expiry":      {noExpiry, "alice@x.com"},
		"garbage":             {"not-a-token", "alice@x.com"},
		"empty":               {"", "alice@x.com"},
		"truncated signature": {token[:len(token)-5], "alice@x.com"},
		"two segments":        {strings.Join(strings.Split(token, ".")[:2], "."), "alice@x.com"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, codec.Validate(tc.token, tc.subject))
			})
		})
	}
}

func TestTokenCodecBitFlipsInvalidate(t *testing.T) {
	codec := NewTokenCodec("secret", time.Hour)
	token, _, err := codec.Issue("alice@x.com")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	for _, idx := range []int{1, 2} {
		raw, err := base64.RawURLEncoding.DecodeString(parts[idx])
		require.NoError(t, err)

		for i := range raw {
			for bit := 0; bit < 8; bit++ {
				mutated := append([]byte(nil), raw...)
				mutated[i] ^= 1 << bit

				segs := append([]string(nil), parts...)
				segs[idx] = base64.RawURLEncoding.EncodeToString(mutated)
				tampered := strings.Join(segs, ".")

				if !assert.False(t, codec.Validate(tampered, "alice@x.com"), "segment %d byte %d bit %d", idx, i, bit) {
					return
				}
			}
		}
	}
}

func TestExtractSubjectMalformed(t *testing.T) {
	codec := NewTokenCodec("secret", time.Hour)

	_, err := codec.ExtractSubject("abc.def")
	assert.ErrorIs(t, err, ErrMalformedToken)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = codec.ExtractSubject(anonymous)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestNewTokenCodecDefaultsTTL(t *testing.T) {
	assert.Equal(t, defaultTokenTTL, NewTokenCodec("secret", 0).TTL())
}

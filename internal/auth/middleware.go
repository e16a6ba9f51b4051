package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// Authentication outcomes reported to the metrics hook.
const (
	OutcomeAnonymous           = "anonymous"
	OutcomeAuthenticated       = "authenticated"
	OutcomeTokenInvalid        = "token_invalid"
	OutcomePrincipalUnresolved = "principal_unresolved"
)

// AuthRecorder receives authentication outcomes. It is an observability hook only.
type AuthRecorder interface {
	RecordAuth(outcome string)
}

// MiddlewareOption customizes AuthMiddleware.
type MiddlewareOption func(*AuthMiddleware)

// WithActiveRecheck makes deactivated accounts resolve as anonymous.
func WithActiveRecheck(enabled bool) MiddlewareOption {
	return func(m *AuthMiddleware) {
		m.recheckActive = enabled
	}
}

// WithRecorder attaches an outcome recorder.
func WithRecorder(recorder AuthRecorder) MiddlewareOption {
	return func(m *AuthMiddleware) {
		m.recorder = recorder
	}
}

// AuthMiddleware resolves bearer tokens into a request SecurityContext. It
// never rejects a request: every failure leaves the context anonymous and
// rejection is left to the Gate and handlers.
type AuthMiddleware struct {
	tokens        *TokenCodec
	resolver      *PrincipalResolver
	logger        *zap.Logger
	recorder      AuthRecorder
	recheckActive bool
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenCodec, resolver *PrincipalResolver, logger *zap.Logger, opts ...MiddlewareOption) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AuthMiddleware{tokens: tokens, resolver: resolver, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle populates the SecurityContext when a valid bearer token is present
// and always continues the chain.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if SecurityContextFrom(c).Authenticated() {
		m.logger.Debug("security context already populated", zap.String("path", c.Path()))
		return c.Next()
	}

	token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		m.record(OutcomeAnonymous)
		return c.Next()
	}

	subject, err := m.tokens.ExtractSubject(token)
	if err != nil {
		m.logger.Info("bearer token not decodable", zap.String("path", c.Path()), zap.Error(err))
		m.record(OutcomeTokenInvalid)
		return c.Next()
	}

	if !m.tokens.Validate(token, subject) {
		m.logger.Warn("bearer token validation failed", zap.String("path", c.Path()), zap.String("subject", subject))
		m.record(OutcomeTokenInvalid)
		return c.Next()
	}

	principal, err := m.resolver.LoadByIdentity(c.UserContext(), subject)
	if err != nil {
		m.logger.Error("principal resolution failed", zap.String("subject", subject), zap.Error(err))
		m.record(OutcomePrincipalUnresolved)
		return c.Next()
	}

	if m.recheckActive && !principal.Account.Active {
		m.logger.Warn("token presented for inactive account", zap.String("subject", subject))
		m.record(OutcomePrincipalUnresolved)
		return c.Next()
	}

	authenticate(c, principal)
	m.logger.Debug("request authenticated",
		zap.String("subject", subject),
		zap.Strings("authorities", principal.Authorities))
	m.record(OutcomeAuthenticated)
	return c.Next()
}

func (m *AuthMiddleware) record(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordAuth(outcome)
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is case-sensitive and surrounding whitespace around the token is
// dropped.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

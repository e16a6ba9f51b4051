package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/orchid-auth/internal/domain"
)

const securityContextKey = "auth_security_context"

// Principal is an account resolved for the current request together with
// the authorities derived from its role.
type Principal struct {
	Account     *domain.Account
	Authorities []string
}

// Identity returns the account identity (e-mail).
func (p *Principal) Identity() string {
	if p == nil || p.Account == nil {
		return ""
	}
	return p.Account.Email
}

// HasAuthority reports whether the principal was granted authority.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// SecurityContext holds the authentication state of a single request. The
// zero value is the anonymous context.
type SecurityContext struct {
	principal *Principal
}

// Authenticated reports whether a principal has been attached.
func (sc *SecurityContext) Authenticated() bool {
	return sc != nil && sc.principal != nil
}

// Principal returns the attached principal, or nil when anonymous.
func (sc *SecurityContext) Principal() *Principal {
	if sc == nil {
		return nil
	}
	return sc.principal
}

// Authorities returns the principal's authorities, or nil when anonymous.
func (sc *SecurityContext) Authorities() []string {
	if !sc.Authenticated() {
		return nil
	}
	return sc.principal.Authorities
}

// SecurityContextFrom returns the request's security context. Requests that
// have not passed the authentication middleware get an anonymous context.
func SecurityContextFrom(c *fiber.Ctx) *SecurityContext {
	if sc, ok := c.Locals(securityContextKey).(*SecurityContext); ok && sc != nil {
		return sc
	}
	return &SecurityContext{}
}

// PrincipalFrom retrieves the authenticated principal of the request.
func PrincipalFrom(c *fiber.Ctx) (*Principal, bool) {
	p := SecurityContextFrom(c).Principal()
	return p, p != nil
}

// authenticate attaches principal to the request. It is only called by the
// authentication middleware.
func authenticate(c *fiber.Ctx, principal *Principal) {
	c.Locals(securityContextKey, &SecurityContext{principal: principal})
}

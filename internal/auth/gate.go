package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	apperrors "github.com/spec-kit/orchid-auth/pkg/util"
)

// Access is the requirement a rule places on a request.
type Access string

const (
	AccessPublic        Access = "public"
	AccessAuthenticated Access = "authenticated"
	AccessRole          Access = "role"
)

// Rule binds a path pattern (and optionally methods) to an access requirement.
// "*" matches one path segment; a trailing "/**" matches the prefix and
// everything below it.
type Rule struct {
	Pattern string   `yaml:"pattern"`
	Methods []string `yaml:"methods,omitempty"`
	Access  Access   `yaml:"access"`
	Roles   []string `yaml:"roles,omitempty"`
}

// Policy is an ordered rule table; the first matching rule wins and Default
// applies to unmatched requests.
type Policy struct {
	Rules   []Rule `yaml:"rules"`
	Default Access `yaml:"default"`
}

// DefaultPolicy mirrors the route surface the service has always exposed:
// only /auth/me needs a principal, every other path is reachable
// anonymously. Stricter tables are loaded with LoadPolicyFile.
func DefaultPolicy() Policy {
	return Policy{
		Rules: []Rule{
			{Pattern: "/auth/me", Access: AccessAuthenticated},
			{Pattern: "/auth/**", Access: AccessPublic},
			{Pattern: "/health/**", Access: AccessPublic},
			{Pattern: "/api/**", Access: AccessPublic},
		},
		Default: AccessPublic,
	}
}

// LoadPolicyFile reads a YAML policy from path.
func LoadPolicyFile(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	var policy Policy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	return policy, nil
}

type compiledRule struct {
	segments    []string
	subtree     bool
	methods     map[string]struct{}
	access      Access
	authorities []string
}

// Gate enforces a Policy against the request SecurityContext.
type Gate struct {
	rules  []compiledRule
	deflt  Access
	logger *zap.Logger
}

// NewGate compiles policy. An empty default access is treated as public.
func NewGate(policy Policy, logger *zap.Logger) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deflt := policy.Default
	if deflt == "" {
		deflt = AccessPublic
	}
	if deflt == AccessRole {
		return nil, errors.New("policy default access cannot be role based")
	}
	if err := checkAccess(deflt); err != nil {
		return nil, err
	}

	g := &Gate{deflt: deflt, logger: logger}
	for i, rule := range policy.Rules {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("policy rule %d: %w", i, err)
		}
		g.rules = append(g.rules, compiled)
	}
	return g, nil
}

// Handle permits or denies the request according to the first matching rule.
func (g *Gate) Handle(c *fiber.Ctx) error {
	access, authorities := g.resolve(c.Method(), c.Path())
	sc := SecurityContextFrom(c)

	switch access {
	case AccessPublic:
		return c.Next()
	case AccessAuthenticated:
		if !sc.Authenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	default:
		if !sc.Authenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, authority := range authorities {
			if sc.Principal().HasAuthority(authority) {
				return c.Next()
			}
		}
		g.logger.Info("access denied",
			zap.String("path", c.Path()),
			zap.String("subject", sc.Principal().Identity()),
			zap.Strings("required", authorities))
		return apperrors.NewForbidden("insufficient authority")
	}
}

func (g *Gate) resolve(method, path string) (Access, []string) {
	segments := splitPath(path)
	for _, rule := range g.rules {
		if rule.matches(method, segments) {
			return rule.access, rule.authorities
		}
	}
	return g.deflt, nil
}

func compileRule(rule Rule) (compiledRule, error) {
	if !strings.HasPrefix(rule.Pattern, "/") {
		return compiledRule{}, fmt.Errorf("pattern %q must start with /", rule.Pattern)
	}
	if err := checkAccess(rule.Access); err != nil {
		return compiledRule{}, err
	}

	compiled := compiledRule{access: rule.Access}
	pattern := rule.Pattern
	if strings.HasSuffix(pattern, "/**") {
		compiled.subtree = true
		pattern = strings.TrimSuffix(pattern, "/**")
	}
	compiled.segments = splitPath(pattern)
	for _, seg := range compiled.segments {
		if seg == "**" {
			return compiledRule{}, fmt.Errorf("pattern %q: ** is only allowed as the last segment", rule.Pattern)
		}
	}

	if len(rule.Methods) > 0 {
		compiled.methods = make(map[string]struct{}, len(rule.Methods))
		for _, m := range rule.Methods {
			compiled.methods[strings.ToUpper(m)] = struct{}{}
		}
	}

	if rule.Access == AccessRole {
		if len(rule.Roles) == 0 {
			return compiledRule{}, fmt.Errorf("pattern %q: role access requires at least one role", rule.Pattern)
		}
		for _, role := range rule.Roles {
			compiled.authorities = append(compiled.authorities, Authority(role))
		}
	}
	return compiled, nil
}

func (r compiledRule) matches(method string, path []string) bool {
	if r.methods != nil {
		if _, ok := r.methods[method]; !ok {
			return false
		}
	}
	if len(path) < len(r.segments) || (!r.subtree && len(path) != len(r.segments)) {
		return false
	}
	for i, seg := range r.segments {
		if seg != "*" && seg != path[i] {
			return false
		}
	}
	return true
}

func checkAccess(access Access) error {
	switch access {
	case AccessPublic, AccessAuthenticated, AccessRole:
		return nil
	}
	return fmt.Errorf("unknown access %q", access)
}

// splitPath lowercases path and splits it into non-empty segments. fiber
// routes case-insensitively and ignores trailing slashes, so rules and
// requests are compared in this form.
func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !SecurityContextFrom(c).Authenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireRole ensures the principal holds the authority of one of roles.
func RequireRole(roles ...string) fiber.Handler {
	authorities := make([]string, 0, len(roles))
	for _, role := range roles {
		authorities = append(authorities, Authority(role))
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(authorities) == 0 {
			return c.Next()
		}
		for _, authority := range authorities {
			if principal.HasAuthority(authority) {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient authority")
	}
}

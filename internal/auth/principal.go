package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/orchid-auth/internal/domain"
)

const (
	authorityPrefix      = "ROLE_"
	defaultLookupTimeout = 2 * time.Second
)

// ErrPrincipalNotFound is returned when no account matches the identity.
var ErrPrincipalNotFound = errors.New("principal not found")

// PrincipalProvider loads the stored account for an identity. Implementations
// return domain.ErrNotFound when the identity is unknown.
type PrincipalProvider interface {
	FindByIdentity(ctx context.Context, identity string) (*domain.Account, error)
}

// PrincipalResolver turns an identity into a Principal. Every call reads the
// provider so role changes are visible on the next request.
type PrincipalResolver struct {
	provider PrincipalProvider
	timeout  time.Duration
}

// NewPrincipalResolver wraps provider, bounding each lookup by timeout.
func NewPrincipalResolver(provider PrincipalProvider, timeout time.Duration) *PrincipalResolver {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &PrincipalResolver{provider: provider, timeout: timeout}
}

// LoadByIdentity resolves identity and derives its authorities.
func (r *PrincipalResolver) LoadByIdentity(ctx context.Context, identity string) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	account, err := r.provider.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, identity)
		}
		return nil, fmt.Errorf("load principal %s: %w", identity, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, identity)
	}

	return &Principal{
		Account:     account,
		Authorities: []string{Authority(account.RoleName())},
	}, nil
}

// Authority maps a role name to its authority string, e.g. "ADMIN" to
// "ROLE_ADMIN". Names already carrying the prefix are kept as is.
func Authority(roleName string) string {
	if roleName == "" {
		roleName = domain.DefaultRoleName
	}
	if strings.HasPrefix(roleName, authorityPrefix) {
		return roleName
	}
	return authorityPrefix + roleName
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/orchid-auth/internal/domain"
)

const principalKeyPrefix = "principal:"

// cachedPrincipal is the Redis projection of an account.
type cachedPrincipal struct {
	ID        int64        `json:"accountId"`
	Name      string       `json:"accountName"`
	Email     string       `json:"email"`
	Active    bool         `json:"isActive"`
	Role      *domain.Role `json:"role,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func newCachedPrincipal(a *domain.Account) cachedPrincipal {
	return cachedPrincipal{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Active:    a.Active,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (p cachedPrincipal) account() *domain.Account {
	return &domain.Account{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Active:    p.Active,
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// CachedAccounts is a read-through Redis cache in front of FindByIdentity.
// Writes made through it evict the affected identity; Redis failures fall
// back to the wrapped repository. Cached entries carry no password hash, so
// accounts it returns cannot verify credentials; use Uncached for that.
type CachedAccounts struct {
	AccountRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedAccounts wraps next with a cache whose entries live for ttl.
func NewCachedAccounts(next AccountRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedAccounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedAccounts{AccountRepository: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedAccounts) FindByIdentity(ctx context.Context, email string) (*domain.Account, error) {
	key := principalKeyPrefix + email

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedPrincipal
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached.account(), nil
		}
		c.logger.Warn("discarding undecodable cached principal", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("principal cache read failed", zap.String("key", key), zap.Error(err))
	}

	account, err := c.AccountRepository.FindByIdentity(ctx, email)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(newCachedPrincipal(account)); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("principal cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return account, nil
}

// Uncached returns the wrapped repository. Credential checks read through it.
func (c *CachedAccounts) Uncached() AccountRepository {
	return c.AccountRepository
}

func (c *CachedAccounts) UpdateRole(ctx context.Context, id int64, role *domain.Role) (*domain.Account, error) {
	account, err := c.AccountRepository.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, account.Email)
	return account, nil
}

func (c *CachedAccounts) SetActive(ctx context.Context, id int64, active bool) (*domain.Account, error) {
	account, err := c.AccountRepository.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, account.Email)
	return account, nil
}

func (c *CachedAccounts) evict(ctx context.Context, email string) {
	if err := c.client.Del(ctx, principalKeyPrefix+email).Err(); err != nil {
		c.logger.Warn("principal cache eviction failed", zap.String("email", email), zap.Error(err))
	}
}

package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/orchid-auth/internal/domain"
	apperrors "github.com/spec-kit/orchid-auth/pkg/util"
)

type stubProvider struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	err      error
	delay    time.Duration
	calls    atomic.Int64
}

func newStubProvider(accounts ...domain.Account) *stubProvider {
	p := &stubProvider{accounts: make(map[string]domain.Account)}
	for _, a := range accounts {
		p.accounts[a.Email] = a
	}
	return p
}

func (p *stubProvider) FindByIdentity(ctx context.Context, identity string) (*domain.Account, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[identity]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &account, nil
}

func (p *stubProvider) setRole(identity string, role *domain.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.accounts[identity]
	a.Role = role
	p.accounts[identity] = a
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) RecordAuth(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Title, "message": de.Message})
		},
	})
}

func alice() domain.Account {
	return domain.Account{ID: 1, Name: "alice", Email: "alice@x.com", Active: true}
}

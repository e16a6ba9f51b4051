// Package memory provides in-process account and role stores used when no
// Postgres DSN is configured, and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/orchid-auth/internal/domain"
	"github.com/spec-kit/orchid-auth/internal/repository"
)

type accountRecord struct {
	account domain.Account
	roleID  *int64
}

// Store holds accounts and roles behind a single lock so account reads see
// current role names.
type Store struct {
	mu         sync.RWMutex
	accounts   map[int64]*accountRecord
	byEmail    map[string]int64
	roles      map[int64]domain.Role
	nextAcctID int64
	nextRoleID int64
	now        func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[int64]*accountRecord),
		byEmail:  make(map[string]int64),
		roles:    make(map[int64]domain.Role),
		now:      time.Now,
	}
}

// Accounts returns the account view of the store.
func (s *Store) Accounts() repository.AccountRepository {
	return accounts{s}
}

// Roles returns the role view of the store.
func (s *Store) Roles() repository.RoleRepository {
	return roles{s}
}

type accounts struct{ s *Store }

func (a accounts) Create(_ context.Context, account *domain.Account) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[account.Email]; exists {
		return domain.ErrAlreadyExists
	}
	for _, rec := range s.accounts {
		if rec.account.Name == account.Name {
			return domain.ErrAlreadyExists
		}
	}
	var rid *int64
	if account.Role != nil {
		if _, ok := s.roles[account.Role.ID]; !ok {
			return domain.ErrNotFound
		}
		id := account.Role.ID
		rid = &id
	}

	s.nextAcctID++
	now := s.now()
	account.ID = s.nextAcctID
	account.CreatedAt = now
	account.UpdatedAt = now

	stored := *account
	stored.Role = nil
	s.accounts[account.ID] = &accountRecord{account: stored, roleID: rid}
	s.byEmail[account.Email] = account.ID
	return nil
}

func (a accounts) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return a.s.load(id)
}

func (a accounts) FindByIdentity(ctx context.Context, email string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	id, ok := a.s.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.s.load(id)
}

func (a accounts) UpdateRole(_ context.Context, id int64, role *domain.Role) (*domain.Account, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if role == nil {
		rec.roleID = nil
	} else {
		if _, ok := s.roles[role.ID]; !ok {
			return nil, domain.ErrNotFound
		}
		rid := role.ID
		rec.roleID = &rid
	}
	rec.account.UpdatedAt = s.now()
	return s.load(id)
}

func (a accounts) SetActive(_ context.Context, id int64, active bool) (*domain.Account, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.account.Active = active
	rec.account.UpdatedAt = s.now()
	return s.load(id)
}

// load returns a copy of the account; the caller holds the lock.
func (s *Store) load(id int64) (*domain.Account, error) {
	rec, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	account := rec.account
	if rec.roleID != nil {
		if role, ok := s.roles[*rec.roleID]; ok {
			account.Role = &role
		}
	}
	return &account, nil
}

type roles struct{ s *Store }

func (r roles) Create(_ context.Context, role *domain.Role) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return domain.ErrAlreadyExists
		}
	}
	s.nextRoleID++
	role.ID = s.nextRoleID
	s.roles[role.ID] = *role
	return nil
}

func (r roles) Update(_ context.Context, role *domain.Role) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID]; !ok {
		return domain.ErrNotFound
	}
	for id, existing := range s.roles {
		if id != role.ID && existing.Name == role.Name {
			return domain.ErrAlreadyExists
		}
	}
	s.roles[role.ID] = *role
	return nil
}

func (r roles) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.roles, id)
	for _, rec := range s.accounts {
		if rec.roleID != nil && *rec.roleID == id {
			rec.roleID = nil
		}
	}
	return nil
}

func (r roles) GetByID(_ context.Context, id int64) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &role, nil
}

func (r roles) GetByName(_ context.Context, name string) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			role := role
			return &role, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r roles) List(_ context.Context) ([]domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		result = append(result, role)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SeedRoles creates the named roles, skipping ones that already exist.
func (s *Store) SeedRoles(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := s.Roles().GetByName(ctx, name); err == nil {
			continue
		}
		if err := s.Roles().Create(ctx, &domain.Role{Name: name}); err != nil {
			return err
		}
	}
	return nil
}

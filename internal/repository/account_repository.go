package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/orchid-auth/internal/domain"
)

// AccountRepository defines persistence access for accounts. FindByIdentity
// also satisfies auth.PrincipalProvider.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByIdentity(ctx context.Context, email string) (*domain.Account, error)
	UpdateRole(ctx context.Context, id int64, role *domain.Role) (*domain.Account, error)
	SetActive(ctx context.Context, id int64, active bool) (*domain.Account, error)
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const accountSelect = `
        SELECT a.account_id, a.account_name, a.email, a.password, a.is_active,
               a.created_at, a.updated_at, r.role_id, r.role_name
        FROM accounts a
        LEFT JOIN roles r ON r.role_id = a.role_id`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (account_name, email, password, is_active, role_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING account_id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.Active,
		roleID(account.Role),
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.scanOne(ctx, accountSelect+` WHERE a.account_id=$1`, id)
}

func (r *accountRepository) FindByIdentity(ctx context.Context, email string) (*domain.Account, error) {
	return r.scanOne(ctx, accountSelect+` WHERE a.email=$1`, email)
}

func (r *accountRepository) UpdateRole(ctx context.Context, id int64, role *domain.Role) (*domain.Account, error) {
	const query = `UPDATE accounts SET role_id=$1, updated_at=NOW() WHERE account_id=$2`

	cmd, err := r.pool.Exec(ctx, query, roleID(role), id)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *accountRepository) SetActive(ctx context.Context, id int64, active bool) (*domain.Account, error) {
	const query = `UPDATE accounts SET is_active=$1, updated_at=NOW() WHERE account_id=$2`

	cmd, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *accountRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var (
		account  domain.Account
		roleID   *int64
		roleName *string
	)
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
		&roleID,
		&roleName,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if roleID != nil && roleName != nil {
		account.Role = &domain.Role{ID: *roleID, Name: *roleName}
	}
	return &account, nil
}

func roleID(role *domain.Role) *int64 {
	if role == nil {
		return nil
	}
	return &role.ID
}

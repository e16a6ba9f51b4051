package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/orchid-auth/internal/auth"
	"github.com/spec-kit/orchid-auth/internal/config"
	"github.com/spec-kit/orchid-auth/internal/domain"
	"github.com/spec-kit/orchid-auth/internal/events"
	"github.com/spec-kit/orchid-auth/internal/repository"
	apperrors "github.com/spec-kit/orchid-auth/pkg/util"
)

// ErrInvalidToken is returned by ValidateToken for any token that does not
// authenticate its subject.
var ErrInvalidToken = errors.New("invalid token")

// AuthService coordinates registration, login and role assignment flows.
type AuthService struct {
	accounts    repository.AccountRepository
	credentials repository.AccountRepository
	roles       repository.RoleRepository
	encoder     *auth.PasswordEncoder
	codec       *auth.TokenCodec
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	RoleRepo    repository.RoleRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	// Codec overrides the codec built from config. Tests use it to pin the clock.
	Codec *auth.TokenCodec
}

// LoginResult carries an issued token together with the authenticated account.
type LoginResult struct {
	Account     *domain.Account
	Token       string
	ExpiresAt   time.Time
	Authorities []string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	codec := deps.Codec
	if codec == nil {
		codec = auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// The principal cache holds no password hashes; logins read the store.
	credentials := deps.AccountRepo
	if cached, ok := deps.AccountRepo.(*repository.CachedAccounts); ok {
		credentials = cached.Uncached()
	}
	return &AuthService{
		accounts:    deps.AccountRepo,
		credentials: credentials,
		roles:       deps.RoleRepo,
		encoder:     auth.NewPasswordEncoder(cfg.Auth.BcryptCost),
		codec:       codec,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// Login verifies credentials and issues a token for the account e-mail.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	account, err := s.credentials.FindByIdentity(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.loginFailed(ctx, email, "unknown identity")
		return nil, apperrors.NewCredentialsInvalid("User not found", "Email is not registered")
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !account.Active {
		s.loginFailed(ctx, email, "account inactive")
		return nil, apperrors.NewCredentialsInvalid("Account disabled", "Your account has been deactivated")
	}
	if !s.encoder.Matches(password, account.PasswordHash) {
		s.loginFailed(ctx, email, "bad credentials")
		return nil, apperrors.NewCredentialsInvalid("", "Bad credentials")
	}

	token, expiresAt, err := s.codec.Issue(account.Email)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.publishEvent(ctx, events.New(events.EventLoginSucceeded, account.Email, nil))

	return &LoginResult{
		Account:     account,
		Token:       token,
		ExpiresAt:   expiresAt,
		Authorities: []string{auth.Authority(account.RoleName())},
	}, nil
}

// Register creates an active account holding the default role.
func (s *AuthService) Register(ctx context.Context, email, password, accountName string) (*domain.Account, error) {
	email = strings.TrimSpace(email)
	accountName = strings.TrimSpace(accountName)
	switch {
	case email == "":
		return nil, apperrors.NewValidationError("Email is required", nil)
	case password == "":
		return nil, apperrors.NewValidationError("Password is required", nil)
	case accountName == "":
		return nil, apperrors.NewValidationError("Account name is required", nil)
	}

	if _, err := s.accounts.FindByIdentity(ctx, email); err == nil {
		return nil, apperrors.NewConflict("User already exists", "Email is already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	role, err := s.roles.GetByName(ctx, domain.DefaultRoleName)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewDomainError("SYSTEM_ERROR", "System error", "Default user role not found", http.StatusInternalServerError, nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := s.encoder.Encode(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	account := &domain.Account{
		Name:         accountName,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Role:         role,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if apperrors.ToDomainError(err).HTTPStatus == http.StatusConflict {
			return nil, apperrors.NewConflict("User already exists", "Email or account name is already registered")
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.New(events.EventAccountRegistered, account.Email, events.AccountRegisteredPayload{
		AccountID: account.ID,
		Role:      account.RoleName(),
	}))
	return account, nil
}

// ValidateToken resolves the token subject and checks the token against it.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.Account, error) {
	subject, err := s.codec.ExtractSubject(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	account, err := s.accounts.FindByIdentity(ctx, subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("load token subject: %w", err)
	}
	if !s.codec.Validate(token, account.Email) {
		return nil, ErrInvalidToken
	}
	return account, nil
}

// UpdateUserRole attaches an existing role to an account.
func (s *AuthService) UpdateUserRole(ctx context.Context, accountID int64, roleID *int64) (*domain.Account, error) {
	if roleID == nil {
		return nil, apperrors.NewValidationError("Role ID is required", nil)
	}

	role, err := s.roles.GetByID(ctx, *roleID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewNotFound("Role", fmt.Sprintf("Role with ID %d not found", *roleID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	current, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewNotFound("User", fmt.Sprintf("User with ID %d not found", accountID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	updated, err := s.accounts.UpdateRole(ctx, accountID, role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.New(events.EventAccountRoleChanged, updated.Email, events.AccountRoleChangedPayload{
		AccountID: updated.ID,
		OldRole:   current.RoleName(),
		NewRole:   updated.RoleName(),
	}))
	return updated, nil
}

// TokenCodec exposes the codec for middleware usage.
func (s *AuthService) TokenCodec() *auth.TokenCodec {
	return s.codec
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	s.logger.Debug("login rejected", zap.String("email", email), zap.String("reason", reason))
	s.publishEvent(ctx, events.New(events.EventLoginFailed, email, events.LoginFailedPayload{Reason: reason}))
}

func (s *AuthService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

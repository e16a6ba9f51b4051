package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/orchid-auth/internal/domain"
	"github.com/spec-kit/orchid-auth/internal/events"
	"github.com/spec-kit/orchid-auth/internal/repository"
	apperrors "github.com/spec-kit/orchid-auth/pkg/util"
)

// RoleService manages the role catalogue.
type RoleService struct {
	roles      repository.RoleRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewRoleService builds the service.
func NewRoleService(roles repository.RoleRepository, dispatcher events.Dispatcher, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{roles: roles, dispatcher: dispatcher, logger: logger}
}

// Create adds a role with a unique name.
func (s *RoleService) Create(ctx context.Context, name string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("Role name is required", nil)
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	role := &domain.Role{Name: name}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, s.conflictOr(err, name)
	}
	s.publish(ctx, events.New(events.EventRoleCreated, role.Name, events.RolePayload{RoleID: role.ID, RoleName: role.Name}))
	return role, nil
}

// Get returns one role.
func (s *RoleService) Get(ctx context.Context, id int64) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, id)
	}
	return role, nil
}

// List returns every role ordered by id.
func (s *RoleService) List(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if roles == nil {
		roles = []domain.Role{}
	}
	return roles, nil
}

// Update renames a role.
func (s *RoleService) Update(ctx context.Context, id int64, name string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("Role name is required", nil)
	}
	if _, err := s.roles.GetByID(ctx, id); err != nil {
		return nil, s.notFoundOr(err, id)
	}
	if err := s.ensureNameFree(ctx, name, id); err != nil {
		return nil, err
	}

	role := &domain.Role{ID: id, Name: name}
	if err := s.roles.Update(ctx, role); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.notFoundOr(err, id)
		}
		return nil, s.conflictOr(err, name)
	}
	return role, nil
}

// Delete removes a role. Accounts holding it fall back to the default role.
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return s.notFoundOr(err, id)
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		return s.notFoundOr(err, id)
	}
	s.publish(ctx, events.New(events.EventRoleDeleted, role.Name, events.RolePayload{RoleID: role.ID, RoleName: role.Name}))
	return nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.roles.GetByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return apperrors.NewConflict("Role already exists", fmt.Sprintf("Role with name '%s' already exists", name))
	case err == nil, errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return apperrors.NewInternalError(err)
	}
}

func (s *RoleService) notFoundOr(err error, id int64) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewNotFound("Role", fmt.Sprintf("Role with ID %d not found", id))
	}
	return apperrors.NewInternalError(err)
}

func (s *RoleService) conflictOr(err error, name string) error {
	if de := apperrors.ToDomainError(err); de.Code == "CONFLICT" {
		return apperrors.NewConflict("Role already exists", fmt.Sprintf("Role with name '%s' already exists", name))
	}
	return apperrors.NewInternalError(err)
}

func (s *RoleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

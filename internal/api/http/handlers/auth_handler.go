package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/orchid-auth/internal/api/dto"
	"github.com/spec-kit/orchid-auth/internal/auth"
	"github.com/spec-kit/orchid-auth/internal/domain"
	"github.com/spec-kit/orchid-auth/internal/service"
	apperrors "github.com/spec-kit/orchid-auth/pkg/util"
)

// AuthHandler exposes login, registration and token endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	account := result.Account
	return c.JSON(dto.LoginResponse{
		Token:       result.Token,
		Email:       account.Email,
		AccountName: account.Name,
		AccountID:   account.ID,
		Role:        account.RoleName(),
		IsActive:    account.Active,
		Authorities: result.Authorities,
		Message:     "Login successful",
		ExpiresAt:   result.ExpiresAt,
	})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	account, err := h.auth.Register(c.UserContext(), req.Email, req.Password, req.AccountName)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(accountResponse(account, "User registered successfully"))
}

// Validate handles POST /auth/validate. It reads only the Authorization header.
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return invalidToken(c, "Invalid token")
	}

	account, err := h.auth.ValidateToken(c.UserContext(), token)
	if errors.Is(err, service.ErrInvalidToken) {
		return invalidToken(c, "Invalid token")
	}
	if err != nil {
		return invalidToken(c, "Token validation failed")
	}

	return c.JSON(dto.ValidateResponse{
		Valid:       true,
		Email:       account.Email,
		AccountID:   account.ID,
		AccountName: account.Name,
		Role:        account.RoleName(),
		IsActive:    account.Active,
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	account := principal.Account
	return c.JSON(dto.MeResponse{
		AccountID:   account.ID,
		Email:       account.Email,
		AccountName: account.Name,
		Role:        account.RoleName(),
		IsActive:    account.Active,
		Authorities: principal.Authorities,
	})
}

// UpdateUserRole handles PUT /auth/users/:id/role.
func (h *AuthHandler) UpdateUserRole(c *fiber.Ctx) error {
	accountID, err := idParam(c, "user")
	if err != nil {
		return err
	}
	var req dto.UpdateUserRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	account, err := h.auth.UpdateUserRole(c.UserContext(), accountID, req.RoleID)
	if err != nil {
		return err
	}
	return c.JSON(accountResponse(account, "User role updated successfully"))
}

// TestAdmin handles GET /auth/test-admin.
func (h *AuthHandler) TestAdmin(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Admin access granted", "timestamp": time.Now().UnixMilli()})
}

// TestUser handles GET /auth/test-user.
func (h *AuthHandler) TestUser(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "User access granted", "timestamp": time.Now().UnixMilli()})
}

// TestAuth handles GET /auth/test-auth.
func (h *AuthHandler) TestAuth(c *fiber.Ctx) error {
	sc := auth.SecurityContextFrom(c)
	return c.JSON(fiber.Map{
		"message":     "Authenticated access granted",
		"user":        sc.Principal().Identity(),
		"authorities": sc.Authorities(),
		"timestamp":   time.Now().UnixMilli(),
	})
}

func accountResponse(account *domain.Account, message string) dto.AccountResponse {
	return dto.AccountResponse{
		Message:     message,
		AccountID:   account.ID,
		Email:       account.Email,
		AccountName: account.Name,
		Role:        account.RoleName(),
		IsActive:    account.Active,
	}
}

func invalidToken(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusUnauthorized).JSON(dto.ValidateResponse{Valid: false, Message: message})
}

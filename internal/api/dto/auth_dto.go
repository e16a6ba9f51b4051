package dto

import "time"

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	AccountName string `json:"accountName" validate:"required"`
}

// UpdateUserRoleRequest payload for PUT /auth/users/:id/role.
type UpdateUserRoleRequest struct {
	RoleID *int64 `json:"roleId" validate:"required"`
}

// RoleRequest payload for role creation and rename.
type RoleRequest struct {
	RoleName string `json:"roleName" validate:"required"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token       string    `json:"token"`
	Email       string    `json:"email"`
	AccountName string    `json:"accountName"`
	AccountID   int64     `json:"accountId"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"isActive"`
	Authorities []string  `json:"authorities"`
	Message     string    `json:"message"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AccountResponse describes an account after registration or role change.
type AccountResponse struct {
	Message     string `json:"message,omitempty"`
	AccountID   int64  `json:"accountId"`
	Email       string `json:"email"`
	AccountName string `json:"accountName"`
	Role        string `json:"role"`
	IsActive    bool   `json:"isActive"`
}

// ValidateResponse is returned by POST /auth/validate.
type ValidateResponse struct {
	Valid       bool   `json:"valid"`
	Message     string `json:"message,omitempty"`
	Email       string `json:"email,omitempty"`
	AccountID   int64  `json:"accountId,omitempty"`
	AccountName string `json:"accountName,omitempty"`
	Role        string `json:"role,omitempty"`
	IsActive    bool   `json:"isActive,omitempty"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	AccountID   int64    `json:"accountId"`
	Email       string   `json:"email"`
	AccountName string   `json:"accountName"`
	Role        string   `json:"role"`
	IsActive    bool     `json:"isActive"`
	Authorities []string `json:"authorities"`
}

// RoleResponse describes a role after a write.
type RoleResponse struct {
	Message  string `json:"message,omitempty"`
	RoleID   int64  `json:"roleId"`
	RoleName string `json:"roleName"`
}

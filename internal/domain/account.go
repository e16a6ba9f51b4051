package domain

import "time"

// DefaultRoleName is assumed for accounts without a role relation.
const DefaultRoleName = "USER"

// Account is the stored credential record resolved as the request principal.
type Account struct {
	ID           int64     `json:"accountId"`
	Name         string    `json:"accountName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Active       bool      `json:"isActive"`
	Role         *Role     `json:"role,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RoleName returns the name of the attached role or DefaultRoleName.
func (a *Account) RoleName() string {
	if a == nil || a.Role == nil || a.Role.Name == "" {
		return DefaultRoleName
	}
	return a.Role.Name
}

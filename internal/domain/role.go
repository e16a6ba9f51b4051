package domain

// Role is a named grant attached to accounts.
type Role struct {
	ID   int64  `json:"roleId"`
	Name string `json:"roleName"`
}

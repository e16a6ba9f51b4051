package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered  EventType = "account_registered"
	EventLoginSucceeded     EventType = "login_succeeded"
	EventLoginFailed        EventType = "login_failed"
	EventAccountRoleChanged EventType = "account_role_changed"
	EventRoleCreated        EventType = "role_created"
	EventRoleDeleted        EventType = "role_deleted"
)

// AllEventTypes lists every type services publish.
var AllEventTypes = []EventType{
	EventAccountRegistered,
	EventLoginSucceeded,
	EventLoginFailed,
	EventAccountRoleChanged,
	EventRoleCreated,
	EventRoleDeleted,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	AccountID int64  `json:"accountId"`
	Role      string `json:"role"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// AccountRoleChangedPayload payload.
type AccountRoleChangedPayload struct {
	AccountID int64  `json:"accountId"`
	OldRole   string `json:"oldRole"`
	NewRole   string `json:"newRole"`
}

// RolePayload payload.
type RolePayload struct {
	RoleID   int64  `json:"roleId"`
	RoleName string `json:"roleName"`
}

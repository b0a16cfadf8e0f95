package entity

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a state change of a user's session chain.
type SessionEventType string

const (
	SessionEventRegistered      SessionEventType = "registered"
	SessionEventLoggedIn        SessionEventType = "logged_in"
	SessionEventRefreshed       SessionEventType = "refreshed"
	SessionEventLoggedOut       SessionEventType = "logged_out"
	SessionEventPasswordChanged SessionEventType = "password_changed"
	SessionEventAccountDeleted  SessionEventType = "account_deleted"
)

// Valid reports whether t is one of the known event types.
func (t SessionEventType) Valid() bool {
	switch t {
	case SessionEventRegistered, SessionEventLoggedIn, SessionEventRefreshed,
		SessionEventLoggedOut, SessionEventPasswordChanged, SessionEventAccountDeleted:
		return true
	}

	return false
}

// SessionEvent is emitted after a session-affecting operation commits.
type SessionEvent struct {
	RequestID  string           `json:"request_id,omitempty"` // For distributed tracing
	Type       SessionEventType `json:"type"`
	UserID     uuid.UUID        `json:"user_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}

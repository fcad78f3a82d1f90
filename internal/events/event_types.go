package events

import (
	"time"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered   EventType = "user_registered"
	EventUserLoggedIn     EventType = "user_logged_in"
	EventSessionRefreshed EventType = "session_refreshed"
	EventUserLoggedOut    EventType = "user_logged_out"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Name  string      `json:"name"`
	Email string      `json:"email,omitempty"`
	Phone string      `json:"phone,omitempty"`
	Role  domain.Role `json:"role"`
}

// UserLoggedInPayload payload.
type UserLoggedInPayload struct {
	ExtendedSession bool `json:"extended_session"`
}

// SessionRefreshedPayload payload.
type SessionRefreshedPayload struct {
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

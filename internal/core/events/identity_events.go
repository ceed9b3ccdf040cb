package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePasswordResetRequested = "password.reset_requested"
	EventTypeUserStatusChanged      = "user.status_changed"
)

// PasswordResetRequestedEvent carries the raw token to the delivery channel. It must not be logged at info level.
type PasswordResetRequestedEvent struct {
	BaseEvent
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ResetLink string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewPasswordResetRequestedEvent(email, token, resetLink string, expiresAt time.Time) *PasswordResetRequestedEvent {
	return &PasswordResetRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypePasswordResetRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"email":      email,
				"expires_at": expiresAt,
			},
		},
		Email:     email,
		Token:     token,
		ResetLink: resetLink,
		ExpiresAt: expiresAt,
	}
}

type UserStatusChangedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	ActorID string `json:"actor_id"`
	Active  bool   `json:"active"`
}

func NewUserStatusChangedEvent(userID, actorID string, active bool, at time.Time) *UserStatusChangedEvent {
	return &UserStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeUserStatusChanged,
			Timestamp: at,
			Data: map[string]interface{}{
				"user_id":  userID,
				"actor_id": actorID,
				"active":   active,
			},
		},
		UserID:  userID,
		ActorID: actorID,
		Active:  active,
	}
}

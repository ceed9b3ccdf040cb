package password

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/events"
)

// Notifier hands a fresh reset token to whatever delivers it to the account owner.
type Notifier interface {
	NotifyReset(ctx context.Context, email, token, link string, expiresAt time.Time) error
}

// EventNotifier publishes the token on the event bus; mail delivery subscribes there.
type EventNotifier struct {
	publisher events.Publisher
}

func NewEventNotifier(publisher events.Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) NotifyReset(ctx context.Context, email, token, link string, expiresAt time.Time) error {
	return n.publisher.Publish(ctx, events.NewPasswordResetRequestedEvent(email, token, link, expiresAt))
}

// LogDelivery is a development subscriber that writes the reset link to the debug log instead of sending mail.
func LogDelivery(logger *slog.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		requested, ok := event.(*events.PasswordResetRequestedEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}
		logger.DebugContext(ctx, "password reset link",
			"email", requested.Email,
			"link", requested.ResetLink,
			"expires_at", requested.ExpiresAt)
		return nil
	}
}

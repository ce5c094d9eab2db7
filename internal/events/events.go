// Package events publishes domain events to a topic exchange so other
// systems (mailing lists, chapter coordinators) can react to signups and
// membership changes.
package events

import (
	"context"
	"log/slog"
	"time"
)

const (
	UserRegistered      = "user.registered"
	MembershipUpgraded  = "membership.upgraded"
	MembershipCancelled = "membership.cancelled"
	AccountLocked       = "account.locked"
)

// Event is the JSON body of every published message. Type doubles as the
// routing key.
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

func New(eventType, userID string, data map[string]string) Event {
	return Event{Type: eventType, UserID: userID, OccurredAt: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher is used when no broker is configured. Events are only
// logged at debug level.
type NoopPublisher struct {
	Logger *slog.Logger
}

func (p NoopPublisher) Publish(ctx context.Context, event Event) error {
	if p.Logger != nil {
		p.Logger.DebugContext(ctx, "event not published, no broker configured",
			slog.String("type", event.Type),
			slog.String("user_id", event.UserID))
	}
	return nil
}

func (NoopPublisher) Close() error { return nil }

// Emit publishes event and logs a failure instead of returning it. Events
// never block the request that produced them.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish event",
			slog.String("type", event.Type),
			slog.String("user_id", event.UserID),
			slog.Any("error", err))
	}
}

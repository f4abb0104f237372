package services

import (
	"context"
	"log/slog"

	"github.com/tasklane/apiserver/internal/events"
)

// EventPublisher delivers domain events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// publish emits an event after a committed change. Failures are logged and
// never undo or fail the change itself.
func publish(ctx context.Context, log *slog.Logger, pub EventPublisher, eventType string, payload any) {
	if pub == nil {
		return
	}
	evt, err := events.New(eventType, payload)
	if err == nil {
		err = pub.Publish(ctx, evt)
	}
	if err != nil {
		log.WarnContext(ctx, "failed to publish event", "type", eventType, "error", err)
	}
}

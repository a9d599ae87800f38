package rabbitmq

import (
	"context"
	"time"

	"messaging-service/internal/observability"
)

// EventMirror wraps chat domain events in an envelope before handing them
// to a Publisher.
type EventMirror struct {
	publisher Publisher
	now       func() time.Time
}

func NewEventMirror(publisher Publisher) *EventMirror {
	return &EventMirror{publisher: publisher, now: time.Now}
}

func (m *EventMirror) Publish(ctx context.Context, routingKey string, event any) error {
	return m.publisher.Publish(ctx, routingKey, observability.EventEnvelope{
		EventType:  "domain_event",
		EventName:  routingKey,
		OccurredAt: m.now().UTC(),
		RequestID:  observability.RequestIDFromContext(ctx),
		Payload:    event,
	})
}

package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a class of domain event.
type EventType string

// Domain events published by the sync core.
const (
	// EventChildDiscovered is published when a new child appears in the
	// remote account list.
	EventChildDiscovered EventType = "child.discovered"

	// EventCurrentWeekRefreshed is published after each live refresh of the
	// mutable current-week record.
	EventCurrentWeekRefreshed EventType = "timeline.current_week_refreshed"

	// EventWeekArchived is published when a completed week becomes an
	// immutable archive record.
	EventWeekArchived EventType = "archive.week_archived"

	// EventBackfillStarted is published when a backfill walk begins or
	// resumes for a child.
	EventBackfillStarted EventType = "backfill.started"

	// EventBackfillCompleted is published when a walk reaches the
	// enrollment boundary.
	EventBackfillCompleted EventType = "backfill.completed"
)

// Event is a domain event scoped to one child.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	ChildKey   string         `json:"child_key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewEvent creates a new event with a fresh ID and the current timestamp.
func NewEvent(eventType EventType, childKey string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ChildKey:   childKey,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// EventHandler processes domain events it has subscribed to.
type EventHandler interface {
	// EventTypes returns the event types this handler wants to receive.
	EventTypes() []EventType

	// Handle processes a single event. Errors are logged by the bus and
	// never propagated to the publisher.
	Handle(ctx context.Context, event Event) error
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards all events. Useful in tests.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

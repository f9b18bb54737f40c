package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
)

type captureHandler struct {
	types    []shared.EventType
	received []shared.Event
	err      error
	panics   bool
}

func (h *captureHandler) EventTypes() []shared.EventType { return h.types }

func (h *captureHandler) Handle(_ context.Context, event shared.Event) error {
	if h.panics {
		panic("handler exploded")
	}
	h.received = append(h.received, event)
	return h.err
}

func TestEventBus_DeliversToSubscribedTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := &captureHandler{types: []shared.EventType{shared.EventWeekArchived}}
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(),
		shared.NewEvent(shared.EventWeekArchived, "101_7", map[string]any{"week": "2024-04-01"})))
	require.NoError(t, bus.Publish(context.Background(),
		shared.NewEvent(shared.EventChildDiscovered, "101_7", nil)))

	require.Len(t, handler.received, 1)
	assert.Equal(t, shared.EventWeekArchived, handler.received[0].Type)
	assert.Equal(t, "101_7", handler.received[0].ChildKey)
}

func TestEventBus_MultipleHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	first := &captureHandler{types: []shared.EventType{shared.EventBackfillCompleted}}
	second := &captureHandler{types: []shared.EventType{shared.EventBackfillCompleted}}
	bus.Subscribe(first)
	bus.Subscribe(second)

	require.NoError(t, bus.Publish(context.Background(),
		shared.NewEvent(shared.EventBackfillCompleted, "101_7", nil)))

	assert.Len(t, first.received, 1)
	assert.Len(t, second.received, 1)
}

func TestEventBus_HandlerErrorIsSwallowed(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	failing := &captureHandler{types: []shared.EventType{shared.EventWeekArchived}, err: assert.AnError}
	healthy := &captureHandler{types: []shared.EventType{shared.EventWeekArchived}}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), shared.NewEvent(shared.EventWeekArchived, "101_7", nil))
	assert.NoError(t, err)
	assert.Len(t, healthy.received, 1)
}

func TestEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	panicking := &captureHandler{types: []shared.EventType{shared.EventWeekArchived}, panics: true}
	healthy := &captureHandler{types: []shared.EventType{shared.EventWeekArchived}}
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	assert.NotPanics(t, func() {
		_ = bus.Publish(context.Background(), shared.NewEvent(shared.EventWeekArchived, "101_7", nil))
	})
	assert.Len(t, healthy.received, 1)
}

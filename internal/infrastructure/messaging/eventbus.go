// Package messaging provides the in-process event bus wiring domain
// events to their handlers.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
)

// InMemoryEventBus is a synchronous in-process event bus. Handlers run on
// the publisher's goroutine; a panicking or failing handler is logged and
// never affects the publisher or the other handlers.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventBus creates an empty bus.
func NewInMemoryEventBus(logger *slog.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for all event types it declares.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range handler.EventTypes() {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	}
}

// Publish delivers an event to every subscribed handler. It always
// returns nil; handler failures are an observability concern, not a
// publisher concern.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(ctx, handler, event)
	}
	return nil
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"type", event.Type, "child", event.ChildKey, "panic", fmt.Sprintf("%v", r))
		}
	}()
	if err := handler.Handle(ctx, event); err != nil {
		b.logger.Error("event handler failed",
			"type", event.Type, "child", event.ChildKey, "error", err)
	}
}

// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
)

// SyncMilestones logs the notable sync milestones at INFO so an operator
// can follow archive growth and backfill completion from the logs alone.
type SyncMilestones struct {
	logger *slog.Logger
}

// NewSyncMilestones creates the handler.
func NewSyncMilestones(logger *slog.Logger) *SyncMilestones {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncMilestones{logger: logger}
}

// EventTypes implements shared.EventHandler.
func (h *SyncMilestones) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventChildDiscovered,
		shared.EventWeekArchived,
		shared.EventBackfillCompleted,
	}
}

// Handle implements shared.EventHandler.
func (h *SyncMilestones) Handle(_ context.Context, event shared.Event) error {
	switch event.Type {
	case shared.EventChildDiscovered:
		h.logger.Info("new child discovered",
			"child", event.ChildKey, "name", event.Payload["name"])
	case shared.EventWeekArchived:
		h.logger.Info("week archived",
			"child", event.ChildKey, "week", event.Payload["week"], "offset", event.Payload["offset"])
	case shared.EventBackfillCompleted:
		h.logger.Info("history backfill finished",
			"child", event.ChildKey,
			"boundary_offset", event.Payload["boundary_offset"],
			"weeks_archived", event.Payload["weeks_archived"])
	}
	return nil
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kinderhub/kinderpedia-sync/internal/application/query"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// Resyncer triggers a full re-sync of all children.
type Resyncer interface {
	ResyncAll(ctx context.Context) error
}

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	queries  *query.Service
	resyncer Resyncer
	db       Pinger
	logger   *slog.Logger

	resyncRunning atomic.Bool
}

// NewHandlers creates the handler set.
func NewHandlers(queries *query.Service, resyncer Resyncer, db Pinger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		queries:  queries,
		resyncer: resyncer,
		db:       db,
		logger:   logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// Health reports liveness plus database reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	code := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// RE-SYNC TRIGGER
// ══════════════════════════════════════════════════════════════════════════════

// Resync is the zero-argument manual trigger. The walk runs in the
// background; the request returns immediately. A trigger while a re-sync
// is already running is accepted and coalesces.
func (h *Handlers) Resync(w http.ResponseWriter, _ *http.Request) {
	if !h.resyncRunning.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "already_running"})
		return
	}

	go func() {
		defer h.resyncRunning.Store(false)
		// Detached from the request context so a closed connection does
		// not abort the walk.
		if err := h.resyncer.ResyncAll(context.Background()); err != nil {
			h.logger.Error("manual re-sync failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

// ══════════════════════════════════════════════════════════════════════════════
// CHILDREN
// ══════════════════════════════════════════════════════════════════════════════

// ListChildren returns all known children.
func (h *Handlers) ListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.queries.Children(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// GetChild returns one child.
func (h *Handlers) GetChild(w http.ResponseWriter, r *http.Request) {
	ch, err := h.queries.Child(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMELINE
// ══════════════════════════════════════════════════════════════════════════════

// GetCurrentWeek returns the live current-week record.
func (h *Handlers) GetCurrentWeek(w http.ResponseWriter, r *http.Request) {
	record, err := h.queries.CurrentWeek(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if record == nil {
		writeJSONError(w, http.StatusNotFound, "no_data", "no current-week data yet")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetArchiveIndex lists all stored weeks for a child.
func (h *Handlers) GetArchiveIndex(w http.ResponseWriter, r *http.Request) {
	index, err := h.queries.ArchiveIndex(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

// GetWeek returns one archived week by its Monday key.
func (h *Handlers) GetWeek(w http.ResponseWriter, r *http.Request) {
	weekKey := r.PathValue("week")
	if _, err := timeutil.ParseWeekKey(weekKey, time.UTC); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_week_key", "week key must be an ISO date (YYYY-MM-DD)")
		return
	}

	record, err := h.queries.Week(r.Context(), r.PathValue("key"), weekKey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetEvents returns calendar events in a date range. Query parameters
// "from" and "to" are ISO dates; the default range is the last 30 days.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(timeutil.WeekKeyLayout, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_from", "from must be an ISO date (YYYY-MM-DD)")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(timeutil.WeekKeyLayout, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_to", "to must be an ISO date (YYYY-MM-DD)")
			return
		}
		to = t
	}

	events, err := h.queries.EventsBetween(r.Context(), r.PathValue("key"), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []timeline.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetLatestDay returns the most recent day with real data.
func (h *Handlers) GetLatestDay(w http.ResponseWriter, r *http.Request) {
	day, err := h.queries.LatestCompleteDay(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if day == nil {
		writeJSONError(w, http.StatusNotFound, "no_data", "no recorded days for this child")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// GetBackfillStatus returns the backfill progress record.
func (h *Handlers) GetBackfillStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := h.queries.BackfillStatus(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// GetNewsfeed returns the live newsfeed for a child.
func (h *Handlers) GetNewsfeed(w http.ResponseWriter, r *http.Request) {
	items, err := h.queries.Newsfeed(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrChildNotFound):
		writeJSONError(w, http.StatusNotFound, "child_not_found", "unknown child key")
	case errors.Is(err, archive.ErrWeekNotFound):
		writeJSONError(w, http.StatusNotFound, "week_not_found", "week is not archived")
	case shared.IsTransient(err):
		writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", "remote service unavailable")
	default:
		h.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

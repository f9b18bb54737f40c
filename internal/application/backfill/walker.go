// Package backfill implements the resumable state machine that walks
// backward through a child's enrollment history one week at a time,
// archiving each completed week exactly once.
//
// The walk is driven by explicit invocations (startup, scheduled recovery
// pass, manual re-sync) rather than an internal loop of its own; each
// invocation resumes from the last persisted checkpoint, so the process
// can be interrupted at any point without losing ground or re-fetching
// immutable weeks.
package backfill

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// WeekFetcher fetches a week-shaped timeline payload for a child at a
// signed week offset. An empty payload is the enrollment-boundary signal;
// transient failures surface as errors matching shared.IsTransient.
type WeekFetcher interface {
	FetchWeek(ctx context.Context, ch *child.Child, weekOffset int) (*timeline.WeekPayload, error)
}

// Config contains walker tuning.
type Config struct {
	// StepDelay is the fixed minimum spacing between successive fetch
	// attempts during a walk, enforced regardless of fetch latency.
	StepDelay time.Duration

	// EmptyWeekRetryLimit is how many times an empty week is re-fetched
	// before it is accepted as the enrollment boundary. An empty response
	// is ambiguous with a transient hole, so one empty answer is never
	// trusted on its own.
	EmptyWeekRetryLimit int

	// MaxConsecutiveFailures suspends the walk after this many transient
	// failures in a row; the next scheduled pass resumes from the
	// checkpoint.
	MaxConsecutiveFailures int

	// MaxWeeksPerWalk caps the number of fetches in one walk as a safety
	// net against a remote that never reports an empty week.
	MaxWeeksPerWalk int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StepDelay:              5 * time.Second,
		EmptyWeekRetryLimit:    2,
		MaxConsecutiveFailures: 5,
		MaxWeeksPerWalk:        520, // ten years of history
	}
}

// Walker walks one child's history backward, checkpointing after every
// archived week. At most one walk runs per child at any time; concurrent
// starts coalesce.
type Walker struct {
	fetcher   WeekFetcher
	store     archive.Store
	children  child.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    Config

	limiter  *rate.Limiter
	locks    *KeyedLock
	guard    *guard
	location *time.Location

	now func() time.Time
}

// NewWalker creates a Walker. Week boundaries are computed in the given
// location, which must match the one the poll coordinator uses.
func NewWalker(
	fetcher WeekFetcher,
	store archive.Store,
	children child.Repository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	location *time.Location,
	config Config,
) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if location == nil {
		location = time.Local
	}
	if config.StepDelay <= 0 {
		config.StepDelay = 5 * time.Second
	}
	if config.EmptyWeekRetryLimit < 0 {
		config.EmptyWeekRetryLimit = 0
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = 5
	}
	if config.MaxWeeksPerWalk <= 0 {
		config.MaxWeeksPerWalk = 520
	}

	return &Walker{
		fetcher:   fetcher,
		store:     store,
		children:  children,
		publisher: publisher,
		logger:    logger,
		config:    config,
		limiter:   rate.NewLimiter(rate.Every(config.StepDelay), 1),
		locks:     NewKeyedLock(),
		guard:     newGuard(),
		location:  location,
	}
}

// Locks exposes the per-child write locks so the poll coordinator can
// serialize its own archive writes against walk steps.
func (w *Walker) Locks() *KeyedLock {
	return w.locks
}

// Run executes (or resumes) the backfill walk for one child. It returns
// nil both on completion and on a transient suspension: every failure
// mode degrades to "resume on the next pass". A second Run for the same
// child while one is active is a no-op.
func (w *Walker) Run(ctx context.Context, ch *child.Child) error {
	key := ch.Key()
	if !w.guard.tryAcquire(key) {
		w.logger.Debug("backfill already running, coalescing", "child", key)
		return nil
	}
	defer w.guard.release(key)

	progress, err := w.store.GetProgress(ctx, key)
	if err != nil {
		w.logger.Error("backfill: load progress failed", "child", key, "error", err)
		return nil
	}

	if progress.IsComplete() {
		gapOffset, found := w.findGap(ctx, progress)
		if !found {
			w.logger.Debug("backfill complete, archive contiguous", "child", key)
			return nil
		}
		// Storage was partially cleared underneath us. Re-enter the walk;
		// already-archived weeks are skipped without fetching, so only
		// the missing range is walked.
		w.logger.Warn("backfill: gap behind completed walk, resuming",
			"child", key, "missing_offset", gapOffset)
		progress.Start()
		progress.Rewind()
	} else {
		progress.Start()
	}

	if err := w.store.SaveProgress(ctx, progress); err != nil {
		w.logger.Error("backfill: save progress failed", "child", key, "error", err)
		return nil
	}
	w.publish(ctx, shared.NewEvent(shared.EventBackfillStarted, key, map[string]any{
		"next_offset": progress.NextOffset(),
	}))

	failures := 0
	fetches := 0
	archived := 0

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("backfill interrupted", "child", key, "archived", archived)
			return err
		}

		offset := progress.NextOffset()
		now := w.clock()
		weekKey := timeutil.WeekKey(timeutil.WeekStart(now, offset))
		currentMonday := timeutil.MondayOf(now)

		// Immutable weeks are never re-fetched, even when the checkpoint
		// was lost or has drifted across week boundaries since it was
		// written.
		has, err := w.store.Has(ctx, key, weekKey)
		if err != nil {
			w.logger.Error("backfill: archive lookup failed", "child", key, "week", weekKey, "error", err)
			return nil
		}
		if has {
			progress.Checkpoint(offset)
			if err := w.store.SaveProgress(ctx, progress); err != nil {
				w.logger.Error("backfill: save progress failed", "child", key, "error", err)
				return nil
			}
			continue
		}

		if fetches >= w.config.MaxWeeksPerWalk {
			w.logger.Warn("backfill: per-walk fetch cap reached, suspending",
				"child", key, "fetches", fetches)
			return nil
		}

		// Fixed spacing between fetch attempts, cancellable.
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}

		payload, err := w.fetcher.FetchWeek(ctx, ch, offset)
		fetches++
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			failures++
			w.logger.Warn("backfill: fetch failed, will retry same offset",
				"child", key, "offset", offset, "failures", failures, "error", err)
			if !shared.IsTransient(err) || failures >= w.config.MaxConsecutiveFailures {
				w.logger.Warn("backfill suspended", "child", key, "offset", offset)
				return nil
			}
			continue
		}
		failures = 0

		record, err := timeline.Build(key, payload, offset, now)
		if err != nil {
			w.logger.Error("backfill: build record failed", "child", key, "offset", offset, "error", err)
			return nil
		}

		if !record.HasRealData() {
			if !progress.RecordEmpty(w.config.EmptyWeekRetryLimit) {
				w.logger.Debug("backfill: empty week, retrying before accepting boundary",
					"child", key, "offset", offset, "streak", progress.EmptyStreak)
				if err := w.store.SaveProgress(ctx, progress); err != nil {
					w.logger.Error("backfill: save progress failed", "child", key, "error", err)
					return nil
				}
				continue
			}
			return w.complete(ctx, ch, progress, offset, archived)
		}

		// Store the week and advance the checkpoint in one atomic write.
		next := *progress
		next.Checkpoint(offset)

		w.locks.Lock(key)
		err = w.store.Archive(ctx, record, &next, currentMonday)
		w.locks.Unlock(key)

		switch {
		case errors.Is(err, archive.ErrAlreadyArchived):
			// Raced with the weekly transition; the week is stored, so
			// just advance.
			w.logger.Warn("backfill: week archived concurrently", "child", key, "week", record.Key())
			progress.Checkpoint(offset)
			if err := w.store.SaveProgress(ctx, progress); err != nil {
				w.logger.Error("backfill: save progress failed", "child", key, "error", err)
				return nil
			}
		case err != nil:
			w.logger.Error("backfill: archive write failed, step abandoned",
				"child", key, "week", record.Key(), "error", err)
			return nil
		default:
			*progress = next
			archived++
			w.logger.Debug("backfill: week archived", "child", key, "week", record.Key(), "offset", offset)
			w.publish(ctx, shared.NewEvent(shared.EventWeekArchived, key, map[string]any{
				"week":   record.Key(),
				"offset": offset,
			}))
		}
	}
}

// complete finishes the walk: the offset that kept coming back empty is
// the enrollment boundary.
func (w *Walker) complete(ctx context.Context, ch *child.Child, progress *archive.Progress, boundaryOffset, archived int) error {
	key := ch.Key()
	boundaryMonday := timeutil.WeekStart(w.clock(), boundaryOffset)
	if err := progress.Complete(boundaryOffset, boundaryMonday); err != nil {
		w.logger.Error("backfill: complete transition rejected", "child", key, "error", err)
		return nil
	}

	w.locks.Lock(key)
	err := w.store.SaveProgress(ctx, progress)
	w.locks.Unlock(key)
	if err != nil {
		w.logger.Error("backfill: save progress failed", "child", key, "error", err)
		return nil
	}

	// The oldest week with data starts one week after the boundary.
	enrollmentWeek := timeutil.WeekStart(w.clock(), boundaryOffset+1)
	ch.RefineEnrollmentStart(enrollmentWeek)
	if err := w.children.Save(ctx, ch); err != nil {
		w.logger.Warn("backfill: enrollment start update failed", "child", key, "error", err)
	}

	w.logger.Info("backfill complete",
		"child", key,
		"boundary_offset", boundaryOffset,
		"weeks_archived", archived,
	)
	w.publish(ctx, shared.NewEvent(shared.EventBackfillCompleted, key, map[string]any{
		"boundary_offset": boundaryOffset,
		"weeks_archived":  archived,
	}))
	return nil
}

// findGap scans from the enrollment boundary toward the current week and
// returns the first missing offset, if any.
func (w *Walker) findGap(ctx context.Context, progress *archive.Progress) (int, bool) {
	now := w.clock()
	start, ok := w.boundaryStart(progress, now)
	if !ok {
		return 0, false
	}
	for offset := start; offset < 0; offset++ {
		weekKey := timeutil.WeekKey(timeutil.WeekStart(now, offset))
		has, err := w.store.Has(ctx, progress.ChildKey, weekKey)
		if err != nil {
			w.logger.Error("backfill: gap check failed", "child", progress.ChildKey, "error", err)
			return 0, false
		}
		if !has {
			return offset, true
		}
	}
	return 0, false
}

// boundaryStart returns the offset one week newer than the enrollment
// boundary, as addressed from now. The offset stored at completion time
// drifts one step per calendar week, so the stable Monday key is
// re-anchored against the current clock; the raw offset is only used for
// progress records written before the Monday key existed.
func (w *Walker) boundaryStart(progress *archive.Progress, now time.Time) (int, bool) {
	if progress.BoundaryWeek != "" {
		if monday, err := timeutil.ParseWeekKey(progress.BoundaryWeek, now.Location()); err == nil {
			return timeutil.OffsetOf(now, monday) + 1, true
		}
	}
	if progress.BoundaryOffset != nil {
		return *progress.BoundaryOffset + 1, true
	}
	return 0, false
}

func (w *Walker) publish(ctx context.Context, event shared.Event) {
	if err := w.publisher.Publish(ctx, event); err != nil {
		w.logger.Warn("backfill: event publish failed", "type", event.Type, "error", err)
	}
}

func (w *Walker) clock() time.Time {
	if w.now != nil {
		return w.now().In(w.location)
	}
	return time.Now().In(w.location)
}

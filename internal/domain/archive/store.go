package archive

import (
	"context"
	"time"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
)

// Archive errors.
var (
	// ErrAlreadyArchived guards the immutability invariant: an attempt to
	// overwrite a week strictly before the current week that is already
	// stored. Callers treat it as a logged anomaly and a no-op, never as a
	// reason to abort a walk or poll loop.
	ErrAlreadyArchived = shared.NewDomainError("archive", "Put", shared.ErrAlreadyExists,
		"week is already archived and immutable")

	// ErrWeekNotFound is returned when a requested week is not stored.
	ErrWeekNotFound = shared.NewDomainError("archive", "Get", shared.ErrNotFound,
		"week not found in archive")
)

// Store is the durable, per-child, append-only archive of week records
// plus the mutable backfill progress record.
//
// Implementations must survive process restart and round-trip records
// exactly. Writes per child are infrequent (one per week plus the one-time
// backfill burst), so synchronous durability is expected.
type Store interface {
	// Has reports whether the week is already stored for the child.
	Has(ctx context.Context, childKey, weekKey string) (bool, error)

	// Put stores a week record. Weeks on or after currentMonday (the
	// mutable current week) may be overwritten freely; a week strictly
	// before currentMonday that is already stored fails with
	// ErrAlreadyArchived and leaves the stored record untouched.
	Put(ctx context.Context, record *timeline.WeekRecord, currentMonday time.Time) error

	// Archive stores a past week and checkpoints progress in a single
	// atomic write: either both are applied or neither is. This is what
	// makes a walk step safe to interrupt at any point.
	Archive(ctx context.Context, record *timeline.WeekRecord, progress *Progress, currentMonday time.Time) error

	// Get returns a stored week record, or ErrWeekNotFound.
	Get(ctx context.Context, childKey, weekKey string) (*timeline.WeekRecord, error)

	// Weeks returns all stored weeks for a child, keyed by week key.
	Weeks(ctx context.Context, childKey string) (map[string]*timeline.WeekRecord, error)

	// GetProgress returns the backfill progress for a child. A child with
	// no stored progress (fresh install, or storage cleared externally)
	// yields a NOT_STARTED record rather than an error.
	GetProgress(ctx context.Context, childKey string) (*Progress, error)

	// SaveProgress persists the progress record on its own.
	SaveProgress(ctx context.Context, progress *Progress) error

	// RemoveChild deletes all archive state for a child.
	RemoveChild(ctx context.Context, childKey string) error
}

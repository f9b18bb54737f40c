// Package archive contains the immutable week archive contract and the
// per-child backfill progress record. The archive grows monotonically:
// weeks strictly before the current week are written exactly once and
// never altered afterwards.
package archive

import (
	"time"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// Status is the backfill state for one child.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusComplete:
		return true
	}
	return false
}

// Progress is the per-child backfill checkpoint. It is mutated only by the
// backfill walker and persisted atomically with each archived week, so a
// restart resumes exactly where the walk stopped.
type Progress struct {
	ChildKey string `json:"child_key"`
	Status   Status `json:"status"`

	// OldestOffset is the oldest week offset successfully archived so far.
	// Nil until the first week is archived.
	OldestOffset *int `json:"oldest_offset,omitempty"`

	// BoundaryOffset is the discovered enrollment-boundary offset: the
	// first offset at which the remote reported an empty week. Nil until
	// the walk completes.
	BoundaryOffset *int `json:"boundary_offset,omitempty"`

	// BoundaryWeek is the Monday key of the boundary week. Offsets are
	// relative addressing that drifts one step per calendar week, so gap
	// checks after completion anchor on this stable date instead.
	BoundaryWeek string `json:"boundary_week,omitempty"`

	// EmptyStreak counts consecutive empty responses at the current
	// offset. An empty week is ambiguous - it can mean "before enrollment"
	// or a transient hole - so the walker retries a bounded number of
	// times before concluding the boundary was reached.
	EmptyStreak int `json:"empty_streak,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewProgress returns the initial NOT_STARTED progress for a child.
func NewProgress(childKey string) *Progress {
	return &Progress{
		ChildKey:  childKey,
		Status:    StatusNotStarted,
		UpdatedAt: time.Now().UTC(),
	}
}

// Start transitions into IN_PROGRESS. Starting from COMPLETE is allowed:
// that is the manual re-sync path re-walking a missing range.
func (p *Progress) Start() {
	p.Status = StatusInProgress
	p.BoundaryOffset = nil
	p.BoundaryWeek = ""
	p.EmptyStreak = 0
	p.touch()
}

// NextOffset returns the offset the next walk step should fetch: one week
// older than the oldest archived week, or -1 when nothing is archived yet.
func (p *Progress) NextOffset() int {
	if p.OldestOffset == nil {
		return -1
	}
	return *p.OldestOffset - 1
}

// Checkpoint records that the week at offset was archived and resets the
// empty streak.
func (p *Progress) Checkpoint(offset int) {
	off := offset
	p.OldestOffset = &off
	p.EmptyStreak = 0
	p.Status = StatusInProgress
	p.touch()
}

// RecordEmpty counts one empty response at the current offset and reports
// whether the bounded retry budget is exhausted.
func (p *Progress) RecordEmpty(retryLimit int) (exhausted bool) {
	p.EmptyStreak++
	p.touch()
	return p.EmptyStreak > retryLimit
}

// Rewind clears the archived-offset checkpoint so the next walk starts
// again from offset -1. Used when a gap is detected behind a completed
// walk; already-archived weeks are skipped without fetching.
func (p *Progress) Rewind() {
	p.OldestOffset = nil
	p.touch()
}

// Complete transitions to COMPLETE, recording the enrollment boundary
// both as the offset it was found at and as the stable Monday date of
// that week.
func (p *Progress) Complete(boundaryOffset int, boundaryMonday time.Time) error {
	if p.Status != StatusInProgress {
		return shared.NewDomainError("archive", "Complete", shared.ErrStateTransition,
			"backfill can only complete from in_progress")
	}
	boundary := boundaryOffset
	p.BoundaryOffset = &boundary
	p.BoundaryWeek = timeutil.WeekKey(boundaryMonday)
	p.Status = StatusComplete
	p.EmptyStreak = 0
	p.touch()
	return nil
}

// IsComplete reports whether the walk has found the enrollment boundary.
func (p *Progress) IsComplete() bool {
	return p.Status == StatusComplete
}

// NeedsWalk reports whether a backfill walk should run for this child.
func (p *Progress) NeedsWalk() bool {
	return p.Status != StatusComplete
}

func (p *Progress) touch() {
	p.UpdatedAt = time.Now().UTC()
}

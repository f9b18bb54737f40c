// Package jobs contains the scheduled jobs of the Kinderpedia sync
// service. Each job is a thin adapter around one poll coordinator
// operation; the coordinator owns the semantics, the job owns the name
// and the tick.
package jobs

import (
	"context"
)

// Coordinator is the subset of the poll coordinator the jobs drive.
type Coordinator interface {
	RefreshChildren(ctx context.Context) error
	RefreshCurrentWeek(ctx context.Context) error
	ArchiveLastWeek(ctx context.Context) error
	EnsureBackfilled(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH CURRENT WEEK JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshCurrentWeekJob fetches the live current-week timeline for every
// child. Runs every 15 minutes.
type RefreshCurrentWeekJob struct {
	coordinator Coordinator
}

// NewRefreshCurrentWeekJob creates the job.
func NewRefreshCurrentWeekJob(coordinator Coordinator) *RefreshCurrentWeekJob {
	return &RefreshCurrentWeekJob{coordinator: coordinator}
}

// Name implements scheduler.Job.
func (j *RefreshCurrentWeekJob) Name() string { return "refresh_current_week" }

// Description implements scheduler.Job.
func (j *RefreshCurrentWeekJob) Description() string {
	return "Fetches the current-week timeline for every child and overwrites the live record"
}

// Run implements scheduler.Job.
func (j *RefreshCurrentWeekJob) Run(ctx context.Context) error {
	return j.coordinator.RefreshCurrentWeek(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE LAST WEEK JOB
// ══════════════════════════════════════════════════════════════════════════════

// ArchiveLastWeekJob archives the week that has just slid out of the
// current-week view. Runs weekly, shortly after the Monday rollover.
type ArchiveLastWeekJob struct {
	coordinator Coordinator
}

// NewArchiveLastWeekJob creates the job.
func NewArchiveLastWeekJob(coordinator Coordinator) *ArchiveLastWeekJob {
	return &ArchiveLastWeekJob{coordinator: coordinator}
}

// Name implements scheduler.Job.
func (j *ArchiveLastWeekJob) Name() string { return "archive_last_week" }

// Description implements scheduler.Job.
func (j *ArchiveLastWeekJob) Description() string {
	return "Archives last week's timeline as an immutable record for every child"
}

// Run implements scheduler.Job.
func (j *ArchiveLastWeekJob) Run(ctx context.Context) error {
	return j.coordinator.ArchiveLastWeek(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH CHILDREN JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshChildrenJob reconciles the local child list with the remote
// account. Runs daily.
type RefreshChildrenJob struct {
	coordinator Coordinator
}

// NewRefreshChildrenJob creates the job.
func NewRefreshChildrenJob(coordinator Coordinator) *RefreshChildrenJob {
	return &RefreshChildrenJob{coordinator: coordinator}
}

// Name implements scheduler.Job.
func (j *RefreshChildrenJob) Name() string { return "refresh_children" }

// Description implements scheduler.Job.
func (j *RefreshChildrenJob) Description() string {
	return "Discovers new children on the account and removes departed ones"
}

// Run implements scheduler.Job.
func (j *RefreshChildrenJob) Run(ctx context.Context) error {
	return j.coordinator.RefreshChildren(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKFILL RECOVERY JOB
// ══════════════════════════════════════════════════════════════════════════════

// BackfillRecoveryJob resumes suspended backfill walks and verifies
// archive contiguity for completed ones. Runs a few times per day; a
// child whose walk is complete and contiguous is a cheap no-op.
type BackfillRecoveryJob struct {
	coordinator Coordinator
}

// NewBackfillRecoveryJob creates the job.
func NewBackfillRecoveryJob(coordinator Coordinator) *BackfillRecoveryJob {
	return &BackfillRecoveryJob{coordinator: coordinator}
}

// Name implements scheduler.Job.
func (j *BackfillRecoveryJob) Name() string { return "backfill_recovery" }

// Description implements scheduler.Job.
func (j *BackfillRecoveryJob) Description() string {
	return "Resumes interrupted history backfill walks from their checkpoints"
}

// Run implements scheduler.Job.
func (j *BackfillRecoveryJob) Run(ctx context.Context) error {
	return j.coordinator.EnsureBackfilled(ctx)
}

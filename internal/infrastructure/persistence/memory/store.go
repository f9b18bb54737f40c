// Package memory holds in-memory implementations of the persistence
// contracts. They back the unit tests and local development without a
// database; semantics mirror the postgres implementations, including the
// immutability guard and atomic archive writes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// ArchiveStore is an in-memory archive.Store.
type ArchiveStore struct {
	mu       sync.RWMutex
	weeks    map[string]map[string]*timeline.WeekRecord // childKey -> weekKey -> record
	progress map[string]*archive.Progress
}

// NewArchiveStore creates an empty store.
func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{
		weeks:    make(map[string]map[string]*timeline.WeekRecord),
		progress: make(map[string]*archive.Progress),
	}
}

// Has implements archive.Store.
func (s *ArchiveStore) Has(_ context.Context, childKey, weekKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.weeks[childKey][weekKey]
	return ok, nil
}

// Put implements archive.Store.
func (s *ArchiveStore) Put(_ context.Context, record *timeline.WeekRecord, currentMonday time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(record, currentMonday)
}

func (s *ArchiveStore) putLocked(record *timeline.WeekRecord, currentMonday time.Time) error {
	childWeeks, ok := s.weeks[record.ChildKey]
	if !ok {
		childWeeks = make(map[string]*timeline.WeekRecord)
		s.weeks[record.ChildKey] = childWeeks
	}

	key := record.Key()
	if _, exists := childWeeks[key]; exists && record.Monday.Before(timeutil.MondayOf(currentMonday)) {
		return archive.ErrAlreadyArchived
	}
	childWeeks[key] = cloneRecord(record)
	return nil
}

// Archive implements archive.Store. Both writes apply or neither does.
func (s *ArchiveStore) Archive(_ context.Context, record *timeline.WeekRecord, progress *archive.Progress, currentMonday time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putLocked(record, currentMonday); err != nil {
		return err
	}
	s.progress[progress.ChildKey] = cloneProgress(progress)
	return nil
}

// Get implements archive.Store.
func (s *ArchiveStore) Get(_ context.Context, childKey, weekKey string) (*timeline.WeekRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.weeks[childKey][weekKey]
	if !ok {
		return nil, archive.ErrWeekNotFound
	}
	return cloneRecord(record), nil
}

// Weeks implements archive.Store.
func (s *ArchiveStore) Weeks(_ context.Context, childKey string) (map[string]*timeline.WeekRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*timeline.WeekRecord, len(s.weeks[childKey]))
	for key, record := range s.weeks[childKey] {
		out[key] = cloneRecord(record)
	}
	return out, nil
}

// GetProgress implements archive.Store.
func (s *ArchiveStore) GetProgress(_ context.Context, childKey string) (*archive.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if progress, ok := s.progress[childKey]; ok {
		return cloneProgress(progress), nil
	}
	return archive.NewProgress(childKey), nil
}

// SaveProgress implements archive.Store.
func (s *ArchiveStore) SaveProgress(_ context.Context, progress *archive.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[progress.ChildKey] = cloneProgress(progress)
	return nil
}

// RemoveChild implements archive.Store.
func (s *ArchiveStore) RemoveChild(_ context.Context, childKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.weeks, childKey)
	delete(s.progress, childKey)
	return nil
}

// DeleteWeek removes a single stored week. Test hook for simulating
// externally cleared storage.
func (s *ArchiveStore) DeleteWeek(childKey, weekKey string) {
	s.mu.Lock()
	delete(s.weeks[childKey], weekKey)
	s.mu.Unlock()
}

func cloneRecord(record *timeline.WeekRecord) *timeline.WeekRecord {
	clone := *record
	clone.Days = make([]timeline.Day, len(record.Days))
	copy(clone.Days, record.Days)
	return &clone
}

func cloneProgress(progress *archive.Progress) *archive.Progress {
	clone := *progress
	if progress.OldestOffset != nil {
		v := *progress.OldestOffset
		clone.OldestOffset = &v
	}
	if progress.BoundaryOffset != nil {
		v := *progress.BoundaryOffset
		clone.BoundaryOffset = &v
	}
	return &clone
}

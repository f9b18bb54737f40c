package postgres

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/archive"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/timeline"
	"github.com/kinderhub/kinderpedia-sync/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ArchiveStore implements archive.Store for PostgreSQL. Week records are
// stored as JSONB; the (child_key, week_key) primary key plus the guarded
// upsert below enforce the once-written invariant for past weeks.
type ArchiveStore struct {
	conn *Connection
}

// NewArchiveStore creates a new ArchiveStore.
func NewArchiveStore(conn *Connection) *ArchiveStore {
	return &ArchiveStore{conn: conn}
}

// Has implements archive.Store.
func (s *ArchiveStore) Has(ctx context.Context, childKey, weekKey string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM week_archive WHERE child_key = $1 AND week_key = $2)`

	var exists bool
	if err := s.conn.QueryRow(ctx, query, childKey, weekKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check archived week: %w", err)
	}
	return exists, nil
}

// Put implements archive.Store.
func (s *ArchiveStore) Put(ctx context.Context, record *timeline.WeekRecord, currentMonday time.Time) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return s.putTx(ctx, tx, record, currentMonday)
	})
}

// putTx writes one week record inside tx. A past week that already exists
// is refused with archive.ErrAlreadyArchived; the current (or a future)
// week is overwritten freely.
func (s *ArchiveStore) putTx(ctx context.Context, tx pgx.Tx, record *timeline.WeekRecord, currentMonday time.Time) error {
	weekKey := record.Key()
	immutable := record.Monday.Before(timeutil.MondayOf(currentMonday))

	if immutable {
		var exists bool
		query := `SELECT EXISTS (SELECT 1 FROM week_archive WHERE child_key = $1 AND week_key = $2)`
		if err := tx.QueryRow(ctx, query, record.ChildKey, weekKey).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check archived week: %w", err)
		}
		if exists {
			return archive.ErrAlreadyArchived
		}
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal week record: %w", err)
	}

	query := `
		INSERT INTO week_archive (child_key, week_key, monday, record, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (child_key, week_key) DO UPDATE SET
			record = EXCLUDED.record,
			fetched_at = EXCLUDED.fetched_at
	`
	if _, err := tx.Exec(ctx, query,
		record.ChildKey, weekKey, record.Monday, body, record.FetchedAt,
	); err != nil {
		return fmt.Errorf("failed to store week record: %w", err)
	}
	return nil
}

// Archive implements archive.Store. The week record and the progress
// checkpoint commit together or not at all.
func (s *ArchiveStore) Archive(ctx context.Context, record *timeline.WeekRecord, progress *archive.Progress, currentMonday time.Time) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.putTx(ctx, tx, record, currentMonday); err != nil {
			return err
		}
		return s.saveProgressTx(ctx, tx, progress)
	})
}

// Get implements archive.Store.
func (s *ArchiveStore) Get(ctx context.Context, childKey, weekKey string) (*timeline.WeekRecord, error) {
	query := `SELECT record FROM week_archive WHERE child_key = $1 AND week_key = $2`

	var body []byte
	err := s.conn.QueryRow(ctx, query, childKey, weekKey).Scan(&body)
	if IsNoRows(err) {
		return nil, archive.ErrWeekNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load week record: %w", err)
	}

	var record timeline.WeekRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal week record: %w", err)
	}
	return &record, nil
}

// Weeks implements archive.Store.
func (s *ArchiveStore) Weeks(ctx context.Context, childKey string) (map[string]*timeline.WeekRecord, error) {
	query := `SELECT week_key, record FROM week_archive WHERE child_key = $1 ORDER BY week_key`

	rows, err := s.conn.Query(ctx, query, childKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list weeks: %w", err)
	}
	defer rows.Close()

	weeks := make(map[string]*timeline.WeekRecord)
	for rows.Next() {
		var weekKey string
		var body []byte
		if err := rows.Scan(&weekKey, &body); err != nil {
			return nil, fmt.Errorf("failed to scan week row: %w", err)
		}
		var record timeline.WeekRecord
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal week record %s: %w", weekKey, err)
		}
		weeks[weekKey] = &record
	}
	return weeks, rows.Err()
}

// GetProgress implements archive.Store. A child without a stored row
// yields a fresh NOT_STARTED record.
func (s *ArchiveStore) GetProgress(ctx context.Context, childKey string) (*archive.Progress, error) {
	query := `
		SELECT child_key, status, oldest_offset, boundary_offset, boundary_week, empty_streak, updated_at
		FROM backfill_progress
		WHERE child_key = $1
	`

	progress := &archive.Progress{}
	err := s.conn.QueryRow(ctx, query, childKey).Scan(
		&progress.ChildKey,
		&progress.Status,
		&progress.OldestOffset,
		&progress.BoundaryOffset,
		&progress.BoundaryWeek,
		&progress.EmptyStreak,
		&progress.UpdatedAt,
	)
	if IsNoRows(err) {
		return archive.NewProgress(childKey), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load backfill progress: %w", err)
	}
	return progress, nil
}

// SaveProgress implements archive.Store.
func (s *ArchiveStore) SaveProgress(ctx context.Context, progress *archive.Progress) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return s.saveProgressTx(ctx, tx, progress)
	})
}

func (s *ArchiveStore) saveProgressTx(ctx context.Context, tx pgx.Tx, progress *archive.Progress) error {
	query := `
		INSERT INTO backfill_progress (child_key, status, oldest_offset, boundary_offset, boundary_week, empty_streak, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (child_key) DO UPDATE SET
			status = EXCLUDED.status,
			oldest_offset = EXCLUDED.oldest_offset,
			boundary_offset = EXCLUDED.boundary_offset,
			boundary_week = EXCLUDED.boundary_week,
			empty_streak = EXCLUDED.empty_streak,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, query,
		progress.ChildKey,
		string(progress.Status),
		progress.OldestOffset,
		progress.BoundaryOffset,
		progress.BoundaryWeek,
		progress.EmptyStreak,
		progress.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save backfill progress: %w", err)
	}
	return nil
}

// RemoveChild implements archive.Store.
func (s *ArchiveStore) RemoveChild(ctx context.Context, childKey string) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM week_archive WHERE child_key = $1`, childKey); err != nil {
			return fmt.Errorf("failed to delete archived weeks: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM backfill_progress WHERE child_key = $1`, childKey); err != nil {
			return fmt.Errorf("failed to delete backfill progress: %w", err)
		}
		return nil
	})
}

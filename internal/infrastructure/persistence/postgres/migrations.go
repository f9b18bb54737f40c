// Package postgres implements the PostgreSQL persistence layer for the
// Kinderpedia sync service.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CHILDREN
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create children table
-- Version: 001

CREATE TABLE IF NOT EXISTS children (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    child_key VARCHAR(50) NOT NULL UNIQUE,
    child_id INTEGER NOT NULL,
    kindergarten_id INTEGER NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    kindergarten_name VARCHAR(200) NOT NULL DEFAULT '',
    birth_date VARCHAR(10) NOT NULL DEFAULT '',
    gender VARCHAR(10) NOT NULL DEFAULT '',
    enrollment_start DATE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(child_id, kindergarten_id)
);

CREATE INDEX IF NOT EXISTS idx_children_child_key ON children(child_key);
`

const migration001Down = `
DROP TABLE IF EXISTS children;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE WEEK ARCHIVE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create week archive table
-- Version: 002

-- One row per child-week. Rows for weeks before the current week are
-- written once and never updated; the application enforces this above
-- the database, the primary key enforces at-most-one record per week.
CREATE TABLE IF NOT EXISTS week_archive (
    child_key VARCHAR(50) NOT NULL,
    week_key VARCHAR(10) NOT NULL,
    monday DATE NOT NULL,
    record JSONB NOT NULL,
    fetched_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (child_key, week_key)
);

CREATE INDEX IF NOT EXISTS idx_week_archive_child ON week_archive(child_key, week_key DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS week_archive;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE BACKFILL PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create backfill progress table
-- Version: 003

CREATE TABLE IF NOT EXISTS backfill_progress (
    child_key VARCHAR(50) PRIMARY KEY,
    status VARCHAR(20) NOT NULL DEFAULT 'not_started',
    oldest_offset INTEGER,
    boundary_offset INTEGER,
    boundary_week VARCHAR(10) NOT NULL DEFAULT '',
    empty_streak INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('not_started', 'in_progress', 'complete'))
);
`

const migration003Down = `
DROP TABLE IF EXISTS backfill_progress;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_children",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_week_archive",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_backfill_progress",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

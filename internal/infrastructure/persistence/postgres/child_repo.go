package postgres

import (
	"context"
	"fmt"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHILD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChildRepository implements child.Repository for PostgreSQL.
type ChildRepository struct {
	conn *Connection
}

// NewChildRepository creates a new ChildRepository.
func NewChildRepository(conn *Connection) *ChildRepository {
	return &ChildRepository{conn: conn}
}

const childColumns = `
	id, child_key, child_id, kindergarten_id, first_name, last_name,
	kindergarten_name, birth_date, gender, enrollment_start, created_at, updated_at
`

// Save implements child.Repository as an upsert by child key.
func (r *ChildRepository) Save(ctx context.Context, c *child.Child) error {
	query := `
		INSERT INTO children (
			id, child_key, child_id, kindergarten_id, first_name, last_name,
			kindergarten_name, birth_date, gender, enrollment_start, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (child_key) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			kindergarten_name = EXCLUDED.kindergarten_name,
			birth_date = EXCLUDED.birth_date,
			gender = EXCLUDED.gender,
			enrollment_start = EXCLUDED.enrollment_start,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		c.Key(),
		c.ChildID,
		c.KindergartenID,
		c.FirstName,
		c.LastName,
		c.KindergartenName,
		c.BirthDate,
		string(c.Gender),
		c.EnrollmentStart,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save child: %w", err)
	}
	return nil
}

// FindByKey implements child.Repository.
func (r *ChildRepository) FindByKey(ctx context.Context, key string) (*child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM children WHERE child_key = $1`
	return r.scanChild(r.conn.QueryRow(ctx, query, key))
}

// FindAll implements child.Repository.
func (r *ChildRepository) FindAll(ctx context.Context) ([]*child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM children ORDER BY child_key`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []*child.Child
	for rows.Next() {
		c, err := r.scanChild(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

// Remove implements child.Repository.
func (r *ChildRepository) Remove(ctx context.Context, key string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM children WHERE child_key = $1`, key); err != nil {
		return fmt.Errorf("failed to remove child: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ChildRepository) scanChild(row rowScanner) (*child.Child, error) {
	var (
		c        child.Child
		childKey string
		gender   string
	)
	err := row.Scan(
		&c.ID,
		&childKey,
		&c.ChildID,
		&c.KindergartenID,
		&c.FirstName,
		&c.LastName,
		&c.KindergartenName,
		&c.BirthDate,
		&gender,
		&c.EnrollmentStart,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrChildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan child: %w", err)
	}
	c.Gender = child.Gender(gender)
	return &c, nil
}

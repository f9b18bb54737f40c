// Package child contains the Child aggregate: a single enrolled child as
// reported by the Kinderpedia account list. Each child owns exactly one
// archive index and one backfill progress record, both keyed by Key().
package child

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
)

// Gender as reported by the remote API ("f" / "m").
type Gender string

const (
	GenderUnknown Gender = ""
	GenderFemale  Gender = "f"
	GenderMale    Gender = "m"
)

// String returns a human-readable gender.
func (g Gender) String() string {
	switch g {
	case GenderFemale:
		return "female"
	case GenderMale:
		return "male"
	default:
		return "unknown"
	}
}

// Child represents one enrolled child at one kindergarten. A child enrolled
// at two kindergartens appears as two distinct children, matching the
// remote account model.
//
// All fields except EnrollmentStart are immutable after discovery;
// EnrollmentStart may be refined once when the backfill walk finds the
// enrollment boundary.
type Child struct {
	ID               uuid.UUID  `json:"id"`
	ChildID          int        `json:"child_id"`
	KindergartenID   int        `json:"kindergarten_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	KindergartenName string     `json:"kindergarten_name"`
	BirthDate        string     `json:"birth_date,omitempty"` // ISO date as reported
	Gender           Gender     `json:"gender,omitempty"`
	EnrollmentStart  *time.Time `json:"enrollment_start,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// New creates a Child from remote identity data.
func New(childID, kindergartenID int, firstName, lastName, kindergartenName string) (*Child, error) {
	if childID <= 0 {
		return nil, shared.NewDomainError("child", "New", shared.ErrInvalidID, "child ID must be positive")
	}
	if kindergartenID <= 0 {
		return nil, shared.NewDomainError("child", "New", shared.ErrInvalidID, "kindergarten ID must be positive")
	}
	if strings.TrimSpace(firstName) == "" {
		return nil, shared.NewDomainError("child", "New", shared.ErrEmptyValue, "first name is required")
	}

	now := time.Now().UTC()
	return &Child{
		ID:               uuid.New(),
		ChildID:          childID,
		KindergartenID:   kindergartenID,
		FirstName:        strings.TrimSpace(firstName),
		LastName:         strings.TrimSpace(lastName),
		KindergartenName: kindergartenName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Key returns the composite child key "{child_id}_{kindergarten_id}" used
// to scope archive records, progress and caches.
func (c *Child) Key() string {
	return fmt.Sprintf("%d_%d", c.ChildID, c.KindergartenID)
}

// FullName returns the display name.
func (c *Child) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// RefineEnrollmentStart records the discovered enrollment boundary week.
// It is a no-op when an earlier start is already known.
func (c *Child) RefineEnrollmentStart(weekStart time.Time) {
	if c.EnrollmentStart != nil && !weekStart.Before(*c.EnrollmentStart) {
		return
	}
	start := weekStart
	c.EnrollmentStart = &start
	c.UpdatedAt = time.Now().UTC()
}

// ParseKey splits a composite child key back into its IDs.
func ParseKey(key string) (childID, kindergartenID int, err error) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return 0, 0, shared.ErrInvalidChildKey
	}
	childID, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, shared.ErrInvalidChildKey
	}
	kindergartenID, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, shared.ErrInvalidChildKey
	}
	return childID, kindergartenID, nil
}

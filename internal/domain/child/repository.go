package child

import "context"

// Repository persists discovered children.
type Repository interface {
	// Save inserts or updates a child by its composite key.
	Save(ctx context.Context, c *Child) error

	// FindByKey returns the child with the given composite key, or
	// shared.ErrChildNotFound.
	FindByKey(ctx context.Context, key string) (*Child, error)

	// FindAll returns all known children.
	FindAll(ctx context.Context) ([]*Child, error)

	// Remove deletes a child and tears down its per-child state.
	Remove(ctx context.Context, key string) error
}

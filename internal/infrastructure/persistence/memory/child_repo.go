package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kinderhub/kinderpedia-sync/internal/domain/child"
	"github.com/kinderhub/kinderpedia-sync/internal/domain/shared"
)

// ChildRepository is an in-memory child.Repository.
type ChildRepository struct {
	mu       sync.RWMutex
	children map[string]*child.Child
}

// NewChildRepository creates an empty repository.
func NewChildRepository() *ChildRepository {
	return &ChildRepository{children: make(map[string]*child.Child)}
}

// Save implements child.Repository.
func (r *ChildRepository) Save(_ context.Context, c *child.Child) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *c
	r.children[c.Key()] = &clone
	return nil
}

// FindByKey implements child.Repository.
func (r *ChildRepository) FindByKey(_ context.Context, key string) (*child.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.children[key]
	if !ok {
		return nil, shared.ErrChildNotFound
	}
	clone := *c
	return &clone, nil
}

// FindAll implements child.Repository.
func (r *ChildRepository) FindAll(_ context.Context) ([]*child.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*child.Child, 0, len(r.children))
	for _, c := range r.children {
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Remove implements child.Repository.
func (r *ChildRepository) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.children, key)
	return nil
}

package backfill

import "sync"

// KeyedLock serializes writers per child key. The walker and the poll
// coordinator share one instance so a backfill step never interleaves
// with a live refresh or weekly archive write for the same child, while
// different children proceed independently.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLock creates an empty KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for a key, creating it on first use.
func (k *KeyedLock) Lock(key string) {
	k.forKey(key).Lock()
}

// Unlock releases the lock for a key.
func (k *KeyedLock) Unlock(key string) {
	k.forKey(key).Unlock()
}

func (k *KeyedLock) forKey(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

// guard is the per-child in-progress flag preventing overlapping walks.
type guard struct {
	mu     sync.Mutex
	active map[string]bool
}

func newGuard() *guard {
	return &guard{active: make(map[string]bool)}
}

// tryAcquire marks a key active; false means a walk is already running
// for that key and the caller should coalesce into it.
func (g *guard) tryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[key] {
		return false
	}
	g.active[key] = true
	return true
}

func (g *guard) release(key string) {
	g.mu.Lock()
	delete(g.active, key)
	g.mu.Unlock()
}

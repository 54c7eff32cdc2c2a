// Package tracking remembers which message ids are accepted but not yet
// applied, so reads can wait for them instead of returning not found.
package tracking

import (
	"context"
	"sync"
)

type entry struct {
	done chan struct{}
	refs int
}

type InflightTracker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewInflightTracker() *InflightTracker {
	return &InflightTracker{keys: make(map[string]*entry)}
}

// Add starts tracking key. Adding the same key twice needs two Removes.
func (t *InflightTracker) Add(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.keys[key]; ok {
		e.refs++
		return
	}
	t.keys[key] = &entry{done: make(chan struct{}), refs: 1}
}

// Remove drops one reference and wakes waiters once none are left.
func (t *InflightTracker) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.keys[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(t.keys, key)
		close(e.done)
	}
}

func (t *InflightTracker) IsInflight(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[key]
	return ok
}

// Wait blocks until key is no longer in flight or ctx ends. It reports
// whether the key was in flight when called.
func (t *InflightTracker) Wait(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	e, ok := t.keys[key]
	t.mu.Unlock()
	if !ok {
		return false, nil
	}
	select {
	case <-e.done:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

func (t *InflightTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.keys)
}

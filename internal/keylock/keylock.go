// Package keylock provides exclusive locks scoped to a string key. Callers
// holding different keys never contend with each other.
package keylock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned when a lock could not be acquired before the
// context was done.
var ErrUnavailable = errors.New("lock unavailable")

type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Lock blocks until the key is free or ctx is done. The returned func
// releases the lock and is safe to call more than once.
func (t *Table) Lock(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		t.release(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			t.release(key, e)
		})
	}, nil
}

func (t *Table) release(key string, e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
}

// Len returns the number of keys currently held or awaited
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

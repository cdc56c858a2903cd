package kv

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/keylock"
)

type record struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a single-process Store. Locks are per key, so different keys
// never wait on each other.
type Memory struct {
	mu       sync.RWMutex
	records  map[string]record
	locks    *keylock.Table
	lockWait time.Duration
	now      func() time.Time
}

func NewMemory(lockWait time.Duration) *Memory {
	return &Memory{
		records:  make(map[string]record),
		locks:    keylock.New(),
		lockWait: lockWait,
		now:      time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	if !rec.expiresAt.IsZero() && !m.now().Before(rec.expiresAt) {
		return nil, false, nil
	}

	value := make([]byte, len(rec.value))
	copy(value, rec.value)
	return value, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := record{value: append([]byte(nil), value...)}
	if ttl > 0 {
		rec.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.records[key] = rec
	m.mu.Unlock()

	return nil
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	if m.lockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.lockWait)
		defer cancel()
	}

	return m.locks.Lock(ctx, key)
}

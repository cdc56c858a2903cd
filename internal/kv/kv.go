// Package kv is the persistence layer for small keyed records that need an
// atomic read-modify-write. Every Store offers an exclusive per-key lock that
// callers hold around Get and Set.
package kv

import (
	"context"
	"time"
)

type Store interface {
	// Get returns the stored value and whether the key exists
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for key; ttl <= 0 keeps it forever
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Lock acquires the exclusive lock for key. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}

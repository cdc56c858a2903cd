package ratelimit

import (
	"context"
	"time"
)

// Quota describes the window a key is currently being charged against
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the quota resets, never
// less than one.
func (q Quota) RetryAfter(now time.Time) int {
	secs := int(q.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type Limiter interface {
	// Charges one attempt against key. On infrastructure failure the limiter
	// fails open: it returns true together with the error.
	Allow(ctx context.Context, key string) (bool, error)

	// Reads the key's window without charging it
	Quota(ctx context.Context, key string) (Quota, error)

	Window() time.Duration
}

package ratelimit

import (
	"context"
	"time"
)

// FixedWindowLimiter applies one limit/window pair to a family of keys,
// e.g. every client address or every merchant id.
type FixedWindowLimiter struct {
	windows *WindowStore
	prefix  string
	limit   int
	window  time.Duration
}

func NewFixedWindow(windows *WindowStore, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows: windows,
		prefix:  prefix,
		limit:   limit,
		window:  window,
	}
}

func (f *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return f.windows.Check(ctx, f.prefix+key, f.limit, f.window)
}

// An untouched or expired key reports the full limit, resetting one window
// from now.
func (f *FixedWindowLimiter) Quota(ctx context.Context, key string) (Quota, error) {
	q := Quota{Limit: f.limit, Remaining: f.limit, ResetAt: f.windows.now().Add(f.window)}

	state, err := f.windows.Window(ctx, f.prefix+key, f.window)
	if err != nil {
		return q, err
	}
	if state.WindowStart.IsZero() {
		return q, nil
	}

	q.Remaining = max(f.limit-state.Count, 0)
	q.ResetAt = state.WindowStart.Add(f.window)
	return q, nil
}

func (f *FixedWindowLimiter) Window() time.Duration {
	return f.window
}

package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/kv"
	"github.com/aman-churiwal/credit-gateway/internal/models"
	"go.uber.org/zap"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_\-.]`)

// WindowStore persists fixed rate windows keyed by an arbitrary identifier
type WindowStore struct {
	store  kv.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewWindowStore(store kv.Store, logger *zap.Logger) *WindowStore {
	return &WindowStore{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func recordKey(key string) string {
	return "rl_" + unsafeKeyChars.ReplaceAllString(key, "_")
}

// Check charges one hit against key and reports whether the window is still
// within limit. The read-increment-write runs under the key's exclusive lock.
// When the lock or the store is unavailable the check fails open and the
// cause is returned next to allowed=true.
func (w *WindowStore) Check(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rk := recordKey(key)

	unlock, err := w.store.Lock(ctx, rk)
	if err != nil {
		return w.failOpen(key, err)
	}
	defer unlock()

	state, err := w.load(ctx, rk)
	if err != nil {
		return w.failOpen(key, err)
	}

	now := w.now()
	if state.Expired(now, window) {
		state = models.RateWindow{WindowStart: now}
	}
	state.Count++

	data, err := json.Marshal(state)
	if err != nil {
		return w.failOpen(key, err)
	}

	// The record outlives its window by the remaining window length at most
	ttl := window - now.Sub(state.WindowStart)
	if err := w.store.Set(ctx, rk, data, ttl); err != nil {
		return w.failOpen(key, err)
	}

	return state.Count <= limit, nil
}

// Window returns the current window for key without charging a hit
func (w *WindowStore) Window(ctx context.Context, key string, window time.Duration) (models.RateWindow, error) {
	state, err := w.load(ctx, recordKey(key))
	if err != nil {
		return models.RateWindow{}, err
	}

	if state.Expired(w.now(), window) {
		return models.RateWindow{}, nil
	}

	return state, nil
}

func (w *WindowStore) load(ctx context.Context, rk string) (models.RateWindow, error) {
	var state models.RateWindow

	data, ok, err := w.store.Get(ctx, rk)
	if err != nil || !ok {
		return state, err
	}

	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt record starts a fresh window
		w.logger.Warn("Discarding unreadable rate window", zap.String("key", rk), zap.Error(err))
		return models.RateWindow{}, nil
	}

	return state, nil
}

func (w *WindowStore) failOpen(key string, err error) (bool, error) {
	w.logger.Warn("Rate limit check failed open",
		zap.String("key", key),
		zap.Error(err),
	)

	return true, fmt.Errorf("rate window %s: %w", key, err)
}

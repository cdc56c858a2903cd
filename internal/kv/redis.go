package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/storage"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	recordPrefix = "jet:kv:"
	lockPrefix   = "jet:lock:"

	lockExpiry     = 5 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

// Redis keeps records in redis and serializes writers with a redsync mutex
// per key. Suitable when several gateway processes share one redis.
type Redis struct {
	redis    *storage.RedisClient
	rs       *redsync.Redsync
	lockWait time.Duration
}

func NewRedis(client *storage.RedisClient, lockWait time.Duration) *Redis {
	pool := goredis.NewPool(client.Client)

	return &Redis{
		redis:    client,
		rs:       redsync.New(pool),
		lockWait: lockWait,
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.redis.Get(ctx, recordPrefix+key)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return []byte(data), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	if err := r.redis.Set(ctx, recordPrefix+key, value, ttl); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	tries := 1
	if r.lockWait > 0 {
		tries = int(r.lockWait/lockRetryDelay) + 1

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.lockWait)
		defer cancel()
	}

	mutex := r.rs.NewMutex(lockPrefix+key,
		redsync.WithExpiry(lockExpiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(lockRetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}

	return func() {
		// An expired lock has already been released by redis
		mutex.UnlockContext(context.Background())
	}, nil
}

package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aman-churiwal/credit-gateway/internal/kv"
	"go.uber.org/zap"
)

// KVStore keeps counters in a kv.Store (in-process memory or redis)
type KVStore struct {
	store  kv.Store
	logger *zap.Logger
}

func NewKVStore(store kv.Store, logger *zap.Logger) *KVStore {
	return &KVStore{
		store:  store,
		logger: logger,
	}
}

func recordKey(merchant string) string {
	return "seq_" + SanitizeKey(merchant)
}

func (s *KVStore) NextValue(ctx context.Context, merchant string) (int64, error) {
	key := recordKey(merchant)

	unlock, err := s.store.Lock(ctx, key)
	if err != nil {
		return degrade(s.logger, merchant, err)
	}
	defer unlock()

	current, err := s.read(ctx, key)
	if err != nil {
		return degrade(s.logger, merchant, err)
	}

	next := current + 1
	if err := s.store.Set(ctx, key, []byte(strconv.FormatInt(next, 10)), 0); err != nil {
		return degrade(s.logger, merchant, err)
	}

	return next, nil
}

func (s *KVStore) Peek(ctx context.Context, merchant string) (int64, error) {
	return s.read(ctx, recordKey(merchant))
}

func (s *KVStore) read(ctx context.Context, key string) (int64, error) {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		s.logger.Warn("Unreadable sequence counter, restarting from zero",
			zap.String("key", key),
			zap.Error(err),
		)
		return 0, nil
	}

	return value, nil
}

func degrade(logger *zap.Logger, merchant string, cause error) (int64, error) {
	logger.Warn("Sequence counter unavailable, using fallback value",
		zap.String("merchant", merchant),
		zap.Int64("fallback", FallbackValue),
		zap.Error(cause),
	)

	return FallbackValue, fmt.Errorf("%w: %v", ErrDegraded, cause)
}

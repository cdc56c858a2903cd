package geo

import (
	"context"
	"errors"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cachePrefix = "jet:geo:"

// CachedResolver keeps known answers of next in redis. Unknown is never cached
// so a recovering lookup service is consulted again on the next request.
type CachedResolver struct {
	next   Resolver
	redis  *storage.RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(next Resolver, client *storage.RedisClient, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{next: next, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedResolver) Country(ctx context.Context, ip string) string {
	cached, err := c.redis.Get(ctx, cachePrefix+ip)
	if err == nil {
		return Normalize(cached)
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Debug("Geo cache read failed", zap.String("ip", ip), zap.Error(err))
	}

	country := c.next.Country(ctx, ip)
	if country == Unknown {
		return country
	}

	if err := c.redis.Set(ctx, cachePrefix+ip, country, c.ttl); err != nil {
		c.logger.Debug("Geo cache write failed", zap.String("ip", ip), zap.Error(err))
	}
	return country
}

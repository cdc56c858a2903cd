package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit charges every request against the client address. Used in front
// of the admin login; submissions are limited inside the admission pipeline.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		ctx := c.Request.Context()

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			logger.Warn("Rate limit check failed open", zap.String("client_ip", key), zap.Error(err))
		}

		quota, err := limiter.Quota(ctx, key)
		if err == nil {
			c.Header("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(quota.ResetAt.Unix(), 10))
		}

		if allowed {
			c.Next()
			return
		}

		retryAfter := int(limiter.Window() / time.Second)
		if err == nil {
			retryAfter = quota.RetryAfter(time.Now())
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"ok":          false,
			"error":       "Too many requests",
			"retry_after": retryAfter,
		})
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware limits connection attempts per client IP using a Redis
// sliding window. With no Redis configured it is a pass-through.
type RateLimitMiddleware struct {
	client *redis.Client
}

func NewRateLimitMiddleware(client *redis.Client) *RateLimitMiddleware {
	return &RateLimitMiddleware{client: client}
}

// Limit allows at most `requests` hits per `window` for each (IP, path) pair.
func (rm *RateLimitMiddleware) Limit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rm.client == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.Request.URL.Path)
		allowed, err := rm.allow(c, key, requests, window)
		if err != nil {
			// Rate limiting is protective, not load-bearing; fail open.
			c.Next()
			return
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate limit exceeded",
				"message": fmt.Sprintf("too many requests, limit is %d per %v", requests, window),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rm *RateLimitMiddleware) allow(c *gin.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx := c.Request.Context()
	now := time.Now()
	windowStart := now.Add(-window).Unix()

	pipe := rm.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return countCmd.Val() < int64(limit), nil
}

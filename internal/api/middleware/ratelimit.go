package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
	"github.com/mtricolici98/bot-wuzzler/pkg/ratelimit"
)

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	KeyFunc func(*gin.Context) string // Function to extract rate limit key
}

// IPKeyFunc keys requests by client address.
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimit rejects requests over the limit with 429. Limiter errors let the
// request through.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = IPKeyFunc
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		decision, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// fail open
			logger.Warn("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d", decision.Limit),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

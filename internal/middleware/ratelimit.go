package middleware

import (
	"net/http" // HTTP status codes
	"strconv"  // Header formatting
	"time"     // Window length

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// RateLimitMiddleware allows limit requests per client IP in each fixed window.
// Counters live in Redis; if Redis is unavailable requests are let through.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "ratelimit:" + c.ClientIP() // One counter per client

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Rate limiter unavailable")
			c.Next()
			return
		}
		reset, err := rdb.PTTL(ctx, key).Result()
		if err == nil && reset < 0 {
			// first hit of the window, or an earlier EXPIRE was lost
			_ = rdb.PExpire(ctx, key, window).Err()
			reset = window
		}
		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		if reset <= 0 {
			reset = window
		}
		c.Header("RateLimit-Limit", strconv.Itoa(limit))
		c.Header("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("RateLimit-Reset", strconv.Itoa(int(reset.Seconds()+0.999)))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(reset.Seconds()+0.999)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Status:     "error",
				StatusCode: http.StatusTooManyRequests,
				Message:    "Too many requests, please try again later.",
			})
			return
		}
		c.Next()
	}
}

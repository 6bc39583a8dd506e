package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"eventhub/internal/metrics"
	"eventhub/internal/models"
)

// LoginThrottle caps login attempts per client IP in a fixed window. Redis
// failures let the request through.
func LoginThrottle(client *redis.Client, role models.Role, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		key := throttleKey(role, c.ClientIP())
		ctx := c.Request.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("login throttle unavailable")
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("login throttle expire failed")
			}
		}

		if count > int64(limit) {
			metrics.LoginThrottledTotal.WithLabelValues(string(role)).Inc()
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts, try again later"})
			return
		}

		c.Next()
	}
}

func throttleKey(role models.Role, ip string) string {
	return fmt.Sprintf("eventhub:login:%s:%s", role, ip)
}

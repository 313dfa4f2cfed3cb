package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"resqlink/utils"
)

// RateLimitMiddleware applies a fixed-window per-client limit backed by
// Redis, so the limit holds across instances. When Redis is down the
// request is allowed through rather than failing closed.
func RateLimitMiddleware(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("resqlink:ratelimit:%s:%d", c.ClientIP(), time.Now().Unix()/int64(window.Seconds()))

		count, err := redisClient.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logrus.WithError(err).Debug("Rate limit check failed, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			redisClient.Expire(c.Request.Context(), key, window)
		}

		if count > int64(limit) {
			utils.RateLimitResponse(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

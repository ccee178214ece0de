// internal/middleware/ratelimit_middleware.go
package middleware

import (
	"strconv"

	"parking-service/internal/pkg/ratelimit"
	"parking-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit throttles requests per client IP. Limiter failures let the
// request through so a redis outage does not close the gates.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, remaining, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !allowed {
			response.TooManyRequests(c, "too many requests, slow down")
			return
		}
		c.Next()
	}
}

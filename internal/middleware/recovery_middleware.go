// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	xerrors "parking-service/internal/pkg/errors"
	"parking-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a panicking handler into a 500 envelope.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				if !c.Writer.Written() {
					response.Error(c, http.StatusInternalServerError, "internal server error", xerrors.ErrInternal)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tiktok-extract-go/pkg/logger"
)

// Recovery turns a handler panic into a 500 and an error log entry with the
// stack. A broken client connection is logged but not answered.
func Recovery(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				c.Abort()
				return
			}

			logAdapter.LogError(logger.CategoryWebAccess, "Panic recovered",
				zap.Any("panic", rec),
				zap.String("request_id", RequestID(c)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "internal server error",
				"request_id": RequestID(c),
			})
		}()
		c.Next()
	}
}

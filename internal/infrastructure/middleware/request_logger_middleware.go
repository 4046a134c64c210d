package middleware

import (
	"context"
	"time"

	"chatnet/internal/core/domain"
	"chatnet/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs each request through a ContextLogger so the
// user id set by AuthMiddleware ends up on the log line.
func RequestLoggerMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		if userID, exists := c.Get("user_id"); exists {
			if id, ok := userID.(domain.UserID); ok {
				ctx = context.WithValue(ctx, "user_id", string(id))
			}
		}

		cl.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}

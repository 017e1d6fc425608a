package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"keyauth.backend/pkg/logger"
)

// LoggerMiddleware logs each request under its route template. Query strings
// are never logged, so keys passed as parameters stay out of the logs.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.LogRequest(c.Request.Context(), c.Request.Method, requestPath(c), c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// requestPath prefers the matched route; unmatched requests log the bare path.
func requestPath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

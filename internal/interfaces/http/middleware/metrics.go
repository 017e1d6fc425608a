package middleware

import (
	"github.com/gin-gonic/gin"
)

// RequestRecorder tracks in-flight requests and their outcome.
type RequestRecorder interface {
	StartRequest() func(method, path string, status int)
}

// MetricsMiddleware reports each request under its route template, so keys in
// bodies or unknown paths never become label values.
func MetricsMiddleware(rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := rec.StartRequest()
		c.Next()
		done(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}

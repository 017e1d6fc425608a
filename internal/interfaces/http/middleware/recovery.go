package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "keyauth.backend/internal/domain/errors"
	"keyauth.backend/internal/interfaces/http/response"
	"keyauth.backend/pkg/logger"
)

// RecoveryMiddleware turns a panic into a JSON 500.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error(c.Request.Context(), "Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		response.Abort(c, domainerrors.InternalError(fmt.Errorf("panic: %v", recovered)))
	})
}

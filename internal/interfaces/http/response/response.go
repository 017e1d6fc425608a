package response

import (
	"github.com/gin-gonic/gin"
	domainerrors "keyauth.backend/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error response. Errors that are not AppErrors become a 500
// without exposing their text.
func Error(c *gin.Context, err error) {
	appErr := toAppError(err)
	c.JSON(appErr.Status, body(appErr))
}

// Abort is Error for middleware: it also stops the handler chain.
func Abort(c *gin.Context, err error) {
	appErr := toAppError(err)
	c.AbortWithStatusJSON(appErr.Status, body(appErr))
}

func toAppError(err error) *domainerrors.AppError {
	if appErr, ok := domainerrors.As(err); ok {
		return appErr
	}
	return domainerrors.InternalError(err)
}

func body(appErr *domainerrors.AppError) gin.H {
	h := gin.H{
		"success": false,
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	for k, v := range appErr.Details {
		if _, reserved := h[k]; !reserved {
			h[k] = v
		}
	}
	return h
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	domainerrors "keyauth.backend/internal/domain/errors"
	"keyauth.backend/internal/interfaces/http/response"
)

// KeyCounter reports how many keys are stored.
type KeyCounter interface {
	CountKeys(ctx context.Context) (int64, error)
}

type SystemHandler struct {
	counter KeyCounter
	now     func() time.Time
}

func NewSystemHandler(counter KeyCounter) *SystemHandler {
	return &SystemHandler{counter: counter, now: time.Now}
}

// Root reports service status and the number of stored keys.
// GET /
func (h *SystemHandler) Root(c *gin.Context) {
	total, err := h.counter.CountKeys(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Activation key service is running",
		"totalKeys": total,
	})
}

// Health is a liveness check.
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// NotFound renders unknown routes as JSON.
func (h *SystemHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"code":    domainerrors.CodeNotFound,
		"message": "Route not found",
		"availableRoutes": []string{
			"POST /api/admin/create-key",
			"GET /api/admin/keys",
			"PATCH /api/admin/revoke-key",
			"DELETE /api/admin/delete-key",
			"POST /api/verify",
			"GET /",
			"GET /health",
		},
	})
}

package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"keyauth.backend/internal/infrastructure/repositories"
	"keyauth.backend/internal/usecases"
)

func TestSystemHandler_HealthAndNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSystemHandler(usecases.NewActivationKeyUsecase(repositories.NewMemoryActivationKeyRepository()))
	h.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 7000000, time.UTC) }

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/", h.Root)
	r.NoRoute(h.NotFound)

	w, body := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "2026-02-03T04:05:06.007Z", body["timestamp"])

	w, body = doJSON(r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["totalKeys"])

	w, body = doJSON(r, http.MethodGet, "/api/tx", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Contains(t, body["availableRoutes"], "POST /api/verify")
}

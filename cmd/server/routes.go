package main

import (
	"github.com/gin-gonic/gin"

	"keyauth.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	keyHandler     *handlers.ActivationKeyHandler
	systemHandler  *handlers.SystemHandler
	verifyLimiter  gin.HandlerFunc
	idempotency    gin.HandlerFunc
	metricsHandler gin.HandlerFunc
}

func passthrough(c *gin.Context) { c.Next() }

func orPassthrough(h gin.HandlerFunc) gin.HandlerFunc {
	if h == nil {
		return passthrough
	}
	return h
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	if d.systemHandler != nil {
		r.GET("/", d.systemHandler.Root)
		r.GET("/health", d.systemHandler.Health)
		r.NoRoute(d.systemHandler.NotFound)
	}
	if d.metricsHandler != nil {
		r.GET("/metrics", d.metricsHandler)
	}

	if d.keyHandler == nil {
		return
	}

	api := r.Group("/api")
	{
		api.POST("/verify", orPassthrough(d.verifyLimiter), d.keyHandler.VerifyKey)

		admin := api.Group("/admin")
		{
			admin.POST("/create-key", orPassthrough(d.idempotency), d.keyHandler.CreateKey)
			admin.GET("/keys", d.keyHandler.ListKeys)
			admin.PATCH("/revoke-key", d.keyHandler.RevokeKey)
			admin.DELETE("/delete-key", d.keyHandler.DeleteKey)
		}
	}
}

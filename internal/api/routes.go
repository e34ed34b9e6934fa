package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Observation routes
		v1.POST("/observations", handler.SubmitObservation)
		v1.POST("/observations/retry", handler.RetryObservation)
		v1.GET("/observations/status/:tenant", handler.GetQueueStatus)

		// Sync routes
		v1.POST("/sync/trigger", handler.TriggerSync)

		// Import routes
		v1.POST("/imports", handler.RegisterImport)

		// Auth routes
		v1.POST("/auth/tokens", handler.SeedTokens)
	}
}

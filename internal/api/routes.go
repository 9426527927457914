package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler, logger *slog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(logger))

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/runs", handler.ListRuns)

		runs := v1.Group("/runs/:id")
		{
			runs.GET("", handler.GetRun)
			runs.GET("/repositories", handler.GetRunRepositories)
			runs.GET("/issues", handler.GetRunIssues)
			runs.GET("/failures", handler.GetRunFailures)
		}
	}

	return router
}

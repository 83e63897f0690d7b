// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/revtrace/revtrace-go/internal/application/container"
	"github.com/revtrace/revtrace-go/internal/presentation/http/handlers"
	"github.com/revtrace/revtrace-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	eventHandlers := handlers.NewEventHandlers(container.IngestService, container.Logger, container.PerfTracker)
	journeyHandlers := handlers.NewJourneyHandlers(container.JourneyService, container.Logger, container.PerfTracker)
	streamHandlers := handlers.NewStreamHandlers(container.Broadcaster, container.Logger)
	systemHandlers := handlers.NewSystemHandlers(container.DB, container.Logger, container.PerfTracker)

	api := r.Group("/api/v1")
	{
		// Ingestion endpoints hit by the embedded client agent
		api.POST("/events", eventHandlers.PostEvent)
		api.POST("/consent", eventHandlers.PostConsent)

		// Read-only journey query interface for reporting
		api.GET("/journeys", journeyHandlers.GetJourneys)

		// Live touchpoint feed
		api.GET("/events/stream", streamHandlers.GetEventStream)

		// Operational endpoints
		api.GET("/health", systemHandlers.GetHealth)
		api.GET("/metrics", systemHandlers.GetMetrics)
		api.GET("/logs/levels", systemHandlers.GetLogLevels)
	}

	return r
}

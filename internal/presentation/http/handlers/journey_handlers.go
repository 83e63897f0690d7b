package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/revtrace/revtrace-go/internal/application/services"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/performance"
)

// JourneyHandlers contains the journey query HTTP handlers
type JourneyHandlers struct {
	journeyService *services.JourneyService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewJourneyHandlers creates journey handlers with injected dependencies
func NewJourneyHandlers(journeyService *services.JourneyService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *JourneyHandlers {
	return &JourneyHandlers{
		journeyService: journeyService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// GetJourneys handles GET /api/v1/journeys - reconstructs visitor journeys.
// Exactly one of the visitor, email, or recent query parameters selects the
// candidate set.
func (h *JourneyHandlers) GetJourneys(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("http:get_journeys")
	defer marker.Complete()

	criteria := services.JourneyCriteria{
		VisitorID:     c.Query("visitor"),
		EmailFragment: c.Query("email"),
	}
	if recentStr := c.Query("recent"); recentStr != "" {
		recent, err := strconv.Atoi(recentStr)
		if err != nil || recent <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recent must be a positive integer"})
			return
		}
		criteria.RecentLimit = recent
	}

	journeys, err := h.journeyService.BuildJourneys(c.Request.Context(), criteria)
	if err != nil {
		h.logger.Journey().Error("Journey query failed", "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Journey().Debug("Journey request completed",
		"journeys", len(journeys),
		"duration", time.Since(start))

	c.JSON(http.StatusOK, gin.H{"journeys": journeys})
}

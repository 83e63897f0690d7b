// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/revtrace/revtrace-go/internal/application/services"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/performance"
)

// EventHandlers contains the ingestion HTTP handlers
type EventHandlers struct {
	ingestService *services.IngestService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewEventHandlers creates event handlers with injected dependencies
func NewEventHandlers(ingestService *services.IngestService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *EventHandlers {
	return &EventHandlers{
		ingestService: ingestService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// PostEvent handles POST /api/v1/events - ingests one attribution event
func (h *EventHandlers) PostEvent(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("http:post_event")
	defer marker.Complete()

	var req services.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Ingest().Error("Malformed event payload", "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	if _, err := h.ingestService.ProcessEvent(c.Request.Context(), &req); err != nil {
		h.logger.Ingest().Error("Event ingestion failed",
			"error", err.Error(),
			"eventType", req.EventType,
			"visitorId", req.VisitorID)
		marker.SetError(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	h.logger.Ingest().Debug("Event request completed",
		"eventType", req.EventType,
		"duration", time.Since(start))

	// Emitters never read the body; 204 keeps the contract minimal.
	c.Status(http.StatusNoContent)
}

// PostConsent handles POST /api/v1/consent - records a consent decision
func (h *EventHandlers) PostConsent(c *gin.Context) {
	marker := h.perfTracker.StartOperation("http:post_consent")
	defer marker.Complete()

	var req services.ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Consent().Error("Malformed consent payload", "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consent payload"})
		return
	}

	if err := h.ingestService.ProcessConsent(c.Request.Context(), &req); err != nil {
		h.logger.Consent().Error("Consent recording failed",
			"error", err.Error(),
			"visitorId", req.VisitorID)
		marker.SetError(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

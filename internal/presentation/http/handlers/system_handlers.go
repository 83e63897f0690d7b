package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/performance"
	"github.com/revtrace/revtrace-go/internal/infrastructure/persistence/database"
)

// SystemHandlers contains health and operational HTTP handlers
type SystemHandlers struct {
	db          *database.DB
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSystemHandlers creates system handlers with injected dependencies
func NewSystemHandlers(db *database.DB, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SystemHandlers {
	return &SystemHandlers{
		db:          db,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetHealth handles GET /api/v1/health - liveness plus database reachability
func (h *SystemHandlers) GetHealth(c *gin.Context) {
	status := "ok"
	httpStatus := http.StatusOK
	if err := h.db.Ping(); err != nil {
		h.logger.System().Error("Health check database ping failed", "error", err.Error())
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetMetrics handles GET /api/v1/metrics - aggregate performance statistics
func (h *SystemHandlers) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.perfTracker.GetOverallStats())
}

// GetLogLevels handles GET /api/v1/logs/levels
func (h *SystemHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

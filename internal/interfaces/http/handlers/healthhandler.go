package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/subflow/internal/shared/logger"
	"github.com/orris-inc/subflow/internal/shared/version"
)

const healthPingTimeout = 2 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports database reachability and whether the background
// jobs run in this process.
type HealthHandler struct {
	db          pinger
	jobsEnabled func() bool
	logger      logger.Interface
}

func NewHealthHandler(db pinger, jobsEnabled func() bool, logger logger.Interface) *HealthHandler {
	if jobsEnabled == nil {
		jobsEnabled = func() bool { return false }
	}
	return &HealthHandler{
		db:          db,
		jobsEnabled: jobsEnabled,
		logger:      logger,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	jobs := "disabled"
	if h.jobsEnabled() {
		jobs = "enabled"
	}

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Errorw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unreachable",
			"jobs":     jobs,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "subflow",
		"version":  version.String(),
		"database": "ok",
		"jobs":     jobs,
	})
}

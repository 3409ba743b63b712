package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/invoiceworks/billing-core/pkg/logger"
)

// Pinger is anything that can report liveness of a backing dependency.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	cache  Pinger
	logger logger.Logger
}

func NewHealthHandler(db, cache Pinger, l logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: l}
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if err := h.db.HealthCheck(ctx); err != nil {
		checks["database"] = "unavailable"
		ready = false
		h.logger.Warn("database readiness check failed", "error", err)
	} else {
		checks["database"] = "ok"
	}

	if err := h.cache.HealthCheck(ctx); err != nil {
		checks["cache"] = "unavailable"
		ready = false
		h.logger.Warn("cache readiness check failed", "error", err)
	} else {
		checks["cache"] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashbridge/internal/monitoring"
	"github.com/platformbuilds/dashbridge/pkg/cache"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

const serviceName = "grafana-to-kibana-converter"

// Pinger is implemented by stores that can check their backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	cache  cache.ValkeyCluster // may be nil
	store  Pinger              // may be nil
	logger logger.Logger
}

func NewHealthHandler(c cache.ValkeyCluster, store Pinger, logger logger.Logger) *HealthHandler {
	return &HealthHandler{cache: c, store: store, logger: logger}
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   monitoring.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready reports unready only when the record store is unreachable. An
// unreachable cache degrades to the in-memory fallback.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			ready = false
			checks["store"] = gin.H{"status": "unhealthy", "error": err.Error()}
			h.logger.Warn("Readiness: store ping failed", "error", err)
		} else {
			checks["store"] = gin.H{"status": "healthy"}
		}
	}

	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			checks["cache"] = gin.H{"status": "degraded", "error": err.Error()}
		} else {
			checks["cache"] = gin.H{"status": "healthy"}
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   serviceName,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency. Optional checks report "degraded"
// instead of failing readiness.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	checks []HealthCheck
	now    func() time.Time
}

// NewHealthHandler creates a HealthHandler running checks on readiness
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, now: time.Now}
}

// Live reports that the process is serving requests
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

// Ready runs every check; any required failure answers 503
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	results := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed",
				zap.String("dependency", check.Name),
				zap.Error(err),
			)
			results[check.Name] = "error"
			if check.Optional {
				if status == "healthy" {
					status = "degraded"
				}
				continue
			}
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}

	c.JSON(code, gin.H{
		"status": status,
		"time":   h.now().UTC().Format(time.RFC3339),
		"checks": results,
	})
}

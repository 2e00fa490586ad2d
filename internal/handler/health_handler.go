package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	providers []string
}

// NewHealthHandler creates a new HealthHandler reporting the configured oracle providers.
func NewHealthHandler(providers []string) *HealthHandler {
	return &HealthHandler{providers: providers}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz. The service is stateless; it is ready once
// at least one oracle provider is configured.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if len(h.providers) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "no oracle provider configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "providers": h.providers})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"notification-relay/internal/registry"
)

// HealthHandler reports liveness and current presence counts.
type HealthHandler struct {
	registry *registry.Registry
	started  time.Time
}

func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg, started: time.Now()}
}

func (h *HealthHandler) Status(c *gin.Context) {
	identities, connections := h.registry.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"identities":  identities,
		"connections": connections,
		"uptime":      int(time.Since(h.started).Seconds()),
	})
}

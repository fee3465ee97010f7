package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports backend connectivity
type Pinger interface {
	Ping() error
}

// HealthHandler answers liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	db Pinger
}

// NewHealthHandler creates a health handler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health returns 200 when the service and its database are reachable
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"
	code := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":   status,
		"database": dbStatus,
	})
}

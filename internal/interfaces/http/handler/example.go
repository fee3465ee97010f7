package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saasforge/backend/internal/interfaces/http/middleware"
)

// ExampleHandler is the demonstration metered endpoint: any request that
// passes the auth, rate limit, and tracking chain counts against the
// caller's monthly quota.
type ExampleHandler struct {
	BaseHandler
}

// NewExampleHandler creates an example handler
func NewExampleHandler() *ExampleHandler {
	return &ExampleHandler{}
}

// Get handles GET /api/v1/example
func (h *ExampleHandler) Get(c *gin.Context) {
	tier, _ := middleware.GetTier(c)
	h.Success(c, gin.H{
		"message":   "This request was metered",
		"tier":      tier.Name,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

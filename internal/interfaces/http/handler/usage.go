package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	appbilling "github.com/saasforge/backend/internal/application/billing"
	"github.com/saasforge/backend/internal/interfaces/http/dto"
)

// UsageHandler serves a subscriber's own usage data
type UsageHandler struct {
	BaseHandler
	usage *appbilling.UsageService
}

// NewUsageHandler creates a usage handler
func NewUsageHandler(usage *appbilling.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// Summary handles GET /api/v1/usage
func (h *UsageHandler) Summary(c *gin.Context) {
	id, err := subscriberID(c)
	if err != nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	summary, err := h.usage.Summary(c.Request.Context(), id)
	if err != nil {
		h.DomainError(c, err)
		return
	}
	h.Success(c, summary)
}

// Events handles GET /api/v1/usage/events
func (h *UsageHandler) Events(c *gin.Context) {
	id, err := subscriberID(c)
	if err != nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	events, err := h.usage.RecentEvents(c.Request.Context(), id, limit)
	if err != nil {
		h.DomainError(c, err)
		return
	}
	h.Success(c, events)
}

package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	appbilling "github.com/saasforge/backend/internal/application/billing"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/saasforge/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// maxWebhookBody caps the raw payload read from Stripe
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment processor webhooks
type WebhookHandler struct {
	BaseHandler
	webhooks *appbilling.WebhookService
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(webhooks *appbilling.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// Stripe handles POST /api/v1/webhooks/stripe. The raw body is required for
// signature verification, so this route must not sit behind any middleware
// that consumes it.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Unreadable payload")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	result, err := h.webhooks.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidSignature) {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidSignature, "Invalid webhook signature")
			return
		}
		// A 500 makes Stripe redeliver the event later
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Webhook processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"type":     result.EventType,
	})
}

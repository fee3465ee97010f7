package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	appbilling "github.com/saasforge/backend/internal/application/billing"
	"github.com/saasforge/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// CronHandler exposes the maintenance jobs to an external scheduler. Both
// endpoints require the shared cron secret as a bearer token; anything else
// is a 401.
type CronHandler struct {
	BaseHandler
	reconciliation *appbilling.ReconciliationService
	alerts         *appbilling.AlertService
	secret         string
	logger         *zap.Logger
}

// NewCronHandler creates a cron handler
func NewCronHandler(
	reconciliation *appbilling.ReconciliationService,
	alerts *appbilling.AlertService,
	secret string,
	logger *zap.Logger,
) *CronHandler {
	return &CronHandler{
		reconciliation: reconciliation,
		alerts:         alerts,
		secret:         secret,
		logger:         logger,
	}
}

// RequireSecret rejects requests without the exact cron bearer secret
func (h *CronHandler) RequireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		expected := "Bearer " + h.secret
		if h.secret == "" ||
			subtle.ConstantTimeCompare([]byte(header), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Invalid cron credential"))
			return
		}
		c.Next()
	}
}

// CalculateUsage runs billing reconciliation for the previous month
// POST /api/v1/cron/calculate-usage
func (h *CronHandler) CalculateUsage(c *gin.Context) {
	report, err := h.reconciliation.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("reconciliation run failed", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Reconciliation failed")
		return
	}
	h.Success(c, report)
}

// UsageAlerts sweeps current-month usage for threshold alerts
// POST /api/v1/cron/usage-alerts
func (h *CronHandler) UsageAlerts(c *gin.Context) {
	results, err := h.alerts.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Error("alert sweep failed", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Alert sweep failed")
		return
	}
	if results == nil {
		results = []appbilling.AlertResult{}
	}
	warnings, exceeded := 0, 0
	for _, r := range results {
		switch r.Level {
		case appbilling.AlertLevelWarning:
			warnings++
		case appbilling.AlertLevelExceeded:
			exceeded++
		}
	}
	h.Success(c, gin.H{
		"alerts": results,
		"summary": gin.H{
			"total":    len(results),
			"warnings": warnings,
			"exceeded": exceeded,
		},
	})
}

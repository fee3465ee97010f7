package router

import (
	"github.com/gin-gonic/gin"
	"github.com/saasforge/backend/internal/infrastructure/ratelimit"
	"github.com/saasforge/backend/internal/interfaces/http/handler"
	"github.com/saasforge/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Deps carries everything the router needs to wire routes
type Deps struct {
	Auth    *middleware.Authenticator
	Limiter ratelimit.Limiter
	Tracker *middleware.UsageTracker
	Health  *handler.HealthHandler
	Cron    *handler.CronHandler
	Webhook *handler.WebhookHandler
	Usage   *handler.UsageHandler
	Keys    *handler.APIKeyHandler
	Example *handler.ExampleHandler
	Logger  *zap.Logger
}

// Setup registers all routes on the engine.
//
// Route classes:
//   - /health: open
//   - /api/v1/webhooks/*: signature-verified, no auth middleware (the raw
//     body must reach the handler untouched)
//   - /api/v1/cron/*: shared-secret bearer auth
//   - everything else under /api/v1: subscriber auth, then rate limiting,
//     then usage tracking
func Setup(engine *gin.Engine, deps Deps) {
	middleware.SetupValidator()

	engine.Use(middleware.RequestID())

	engine.GET("/health", deps.Health.Health)

	api := engine.Group("/api/v1")

	webhooks := api.Group("/webhooks")
	webhooks.POST("/stripe", deps.Webhook.Stripe)

	cron := api.Group("/cron")
	cron.Use(deps.Cron.RequireSecret())
	cron.POST("/calculate-usage", deps.Cron.CalculateUsage)
	cron.POST("/usage-alerts", deps.Cron.UsageAlerts)

	metered := api.Group("")
	metered.Use(deps.Auth.RequireAuth())
	metered.Use(middleware.RateLimit(deps.Limiter, deps.Logger))
	metered.Use(deps.Tracker.Middleware())

	metered.GET("/example", deps.Example.Get)
	metered.GET("/usage", deps.Usage.Summary)
	metered.GET("/usage/events", deps.Usage.Events)
	metered.POST("/keys", deps.Keys.Create)
	metered.GET("/keys", deps.Keys.List)
	metered.DELETE("/keys/:id", deps.Keys.Delete)
}

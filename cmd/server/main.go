package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	appbilling "github.com/saasforge/backend/internal/application/billing"
	appidentity "github.com/saasforge/backend/internal/application/identity"
	"github.com/saasforge/backend/internal/application/jobs"
	domainbilling "github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/notification"
	"github.com/saasforge/backend/internal/infrastructure/auth"
	infrabilling "github.com/saasforge/backend/internal/infrastructure/billing"
	"github.com/saasforge/backend/internal/infrastructure/cache"
	"github.com/saasforge/backend/internal/infrastructure/config"
	"github.com/saasforge/backend/internal/infrastructure/email"
	"github.com/saasforge/backend/internal/infrastructure/logger"
	"github.com/saasforge/backend/internal/infrastructure/persistence"
	"github.com/saasforge/backend/internal/infrastructure/ratelimit"
	"github.com/saasforge/backend/internal/infrastructure/scheduler"
	"github.com/saasforge/backend/internal/infrastructure/storage"
	"github.com/saasforge/backend/internal/interfaces/http/handler"
	"github.com/saasforge/backend/internal/interfaces/http/middleware"
	"github.com/saasforge/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting SaaSForge backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	// Database
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional: without it the rate limiter fails open and alert
	// dedup becomes process-local
	var redisClient redis.UniversalClient
	var marker domainbilling.AlertMarker = cache.NewMemoryAlertMarker()
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unreachable at startup, continuing degraded", zap.Error(err))
		}
		redisClient = client
		marker = cache.NewRedisAlertMarker(client)
		defer client.Close()
	} else {
		log.Warn("Redis disabled, rate limiting degraded to fail-open")
	}
	limiter := ratelimit.NewFixedWindowLimiter(redisClient, log)

	// Repositories
	subscriberRepo := persistence.NewGormSubscriberRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	usageRepo := persistence.NewGormUsageEventRepository(db.DB)
	actionRepo := persistence.NewGormBillingActionRepository(db.DB)
	apiKeyRepo := persistence.NewGormAPIKeyRepository(db.DB)
	jobRepo := persistence.NewGormJobRunRepository(db.DB)

	// Tier catalog with optional price id overrides from config
	catalog := domainbilling.DefaultCatalog()
	catalog.OverridePriceIDs(cfg.Stripe.MonthlyPriceIDs, cfg.Stripe.AnnualPriceIDs)

	// Email
	var sender notification.Sender = email.NewNoopSender(log)
	if cfg.Email.Enabled {
		sender = email.NewSMTPSender(cfg.Email.Host, cfg.Email.Port,
			cfg.Email.Username, cfg.Email.Password, cfg.Email.From, log)
	}

	// Stripe
	stripeCfg := infrabilling.NewStripeConfig(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	var invoicer domainbilling.Invoicer
	if cfg.Stripe.SecretKey != "" {
		stripeInvoicer, err := infrabilling.NewStripeInvoicer(stripeCfg, log)
		if err != nil {
			log.Fatal("Failed to initialize Stripe", zap.Error(err))
		}
		invoicer = stripeInvoicer
	} else {
		log.Warn("Stripe secret key missing, overage invoicing disabled")
	}

	// Workflow engine
	engine := jobs.NewEngine(jobRepo, jobs.EngineConfig{
		PollInterval: cfg.Jobs.PollInterval,
		BatchSize:    cfg.Jobs.BatchSize,
		MaxAttempts:  cfg.Jobs.MaxAttempts,
	}, log)

	// Object storage for the file workflow
	var store jobs.ObjectStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3Store(&cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		store = s3Store
	} else {
		store = storage.NewMemoryStore()
	}

	jobs.RegisterWorkflows(engine, jobs.WorkflowDeps{
		Subscribers: subscriberRepo,
		Sender:      sender,
		Engine:      engine,
		Store:       store,
		Logger:      log,
	})

	// Application services
	reconciliation := appbilling.NewReconciliationService(subscriberRepo, usageRepo, actionRepo, invoicer, catalog, log)
	alerts := appbilling.NewAlertService(subscriberRepo, usageRepo, marker, engine, catalog, log)
	webhooks := appbilling.NewWebhookService(appbilling.WebhookServiceConfig{
		Config:        stripeCfg,
		Subscribers:   subscriberRepo,
		Subscriptions: subscriptionRepo,
		Catalog:       catalog,
		Emitter:       engine,
		Logger:        log,
	})
	usageSvc := appbilling.NewUsageService(subscriberRepo, usageRepo, catalog, log)
	keySvc := appidentity.NewAPIKeyService(apiKeyRepo, log)

	// Usage tracker
	tracker := middleware.NewUsageTracker(usageRepo, middleware.UsageTrackerConfig{
		BufferSize:    cfg.Usage.BufferSize,
		BatchSize:     cfg.Usage.BatchSize,
		FlushInterval: cfg.Usage.FlushInterval,
	}, log)

	// HTTP surface
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	_ = ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies)

	sessions := auth.NewJWTSessionVerifier(cfg.Auth.SessionSecret, cfg.Auth.SessionIssuer)
	authenticator := middleware.NewAuthenticator(keySvc, sessions, subscriberRepo, catalog, log)

	router.Setup(ginEngine, router.Deps{
		Auth:    authenticator,
		Limiter: limiter,
		Tracker: tracker,
		Health:  handler.NewHealthHandler(db),
		Cron:    handler.NewCronHandler(reconciliation, alerts, cfg.Cron.Secret, log),
		Webhook: handler.NewWebhookHandler(webhooks, log),
		Usage:   handler.NewUsageHandler(usageSvc),
		Keys:    handler.NewAPIKeyHandler(keySvc),
		Example: handler.NewExampleHandler(),
	})

	// Background components
	rootCtx := context.Background()
	if err := tracker.Start(rootCtx); err != nil {
		log.Fatal("Failed to start usage tracker", zap.Error(err))
	}
	if cfg.Jobs.Enabled {
		if err := engine.Start(rootCtx); err != nil {
			log.Fatal("Failed to start workflow engine", zap.Error(err))
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(log)
		sched.Add(scheduler.Job{
			Name: "billing-reconciliation",
			Spec: cfg.Scheduler.ReconciliationSpec,
			Run: func(ctx context.Context) error {
				_, err := reconciliation.Run(ctx)
				return err
			},
		})
		sched.Add(scheduler.Job{
			Name: "usage-alerts",
			Spec: cfg.Scheduler.UsageAlertsSpec,
			Run: func(ctx context.Context) error {
				_, err := alerts.Sweep(ctx)
				return err
			},
		})
		if err := sched.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown error", zap.Error(err))
		}
	}
	if cfg.Jobs.Enabled {
		if err := engine.Stop(shutdownCtx); err != nil {
			log.Error("Workflow engine shutdown error", zap.Error(err))
		}
	}
	if err := tracker.Stop(shutdownCtx); err != nil {
		log.Error("Usage tracker shutdown error", zap.Error(err))
	}

	log.Info("Shutdown complete")
}

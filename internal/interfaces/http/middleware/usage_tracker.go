package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saasforge/backend/internal/domain/billing"
	"go.uber.org/zap"
)

// UsageTrackerConfig holds the async usage tracker configuration
type UsageTrackerConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultUsageTrackerConfig returns default configuration
func DefaultUsageTrackerConfig() UsageTrackerConfig {
	return UsageTrackerConfig{
		BufferSize:    4096,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// UsageTracker records one usage event per completed metered request. The
// request path only enqueues; a background writer batches events into the
// store. A full buffer drops the event with a warning rather than stalling
// the caller.
type UsageTracker struct {
	repo   billing.UsageEventRepository
	config UsageTrackerConfig
	logger *zap.Logger
	events chan *billing.UsageEvent

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUsageTracker creates a tracker
func NewUsageTracker(repo billing.UsageEventRepository, config UsageTrackerConfig, logger *zap.Logger) *UsageTracker {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultUsageTrackerConfig().BufferSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultUsageTrackerConfig().BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultUsageTrackerConfig().FlushInterval
	}
	return &UsageTracker{
		repo:   repo,
		config: config,
		logger: logger,
		events: make(chan *billing.UsageEvent, config.BufferSize),
	}
}

// Start launches the background batch writer
func (t *UsageTracker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.writeLoop(ctx)

	t.logger.Info("usage tracker started",
		zap.Int("buffer_size", t.config.BufferSize),
		zap.Int("batch_size", t.config.BatchSize),
		zap.Duration("flush_interval", t.config.FlushInterval))
	return nil
}

// Stop drains buffered events and stops the writer
func (t *UsageTracker) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("usage tracker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Middleware records the request after the handler chain completes. It sits
// behind the rate limiter, so rejected 429s never reach it and only admitted
// requests count; an admitted request that fails with a 500 still does.
func (t *UsageTracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		subscriberID, ok := GetSubscriberID(c)
		if !ok {
			return
		}

		event, err := billing.NewUsageEvent(
			subscriberID,
			c.FullPath(),
			c.Request.Method,
			c.Writer.Status(),
			time.Since(start),
		)
		if err != nil {
			t.logger.Warn("failed to build usage event", zap.Error(err))
			return
		}
		event.WithRequestInfo(c.ClientIP(), c.Request.UserAgent())

		select {
		case t.events <- event:
		default:
			t.logger.Warn("usage buffer full, dropping event",
				zap.String("subscriber_id", subscriberID.String()),
				zap.String("endpoint", event.Endpoint))
		}
	}
}

// writeLoop batches events into the repository
func (t *UsageTracker) writeLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*billing.UsageEvent, 0, t.config.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Detached context: a canceled request must not lose its event
		if err := t.repo.SaveBatch(context.Background(), batch); err != nil {
			t.logger.Error("failed to persist usage batch",
				zap.Int("events", len(batch)),
				zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever is still buffered before exiting
			for {
				select {
				case event := <-t.events:
					batch = append(batch, event)
					if len(batch) >= t.config.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case event := <-t.events:
			batch = append(batch, event)
			if len(batch) >= t.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

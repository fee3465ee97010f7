package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Degraded is true when the backing store was unavailable and the
	// request was admitted without counting.
	Degraded bool
}

// Limiter checks a per-key request budget
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
}

// FixedWindowLimiter counts requests in one-minute windows in Redis. The
// counter key embeds the window start so old windows expire on their own.
// When Redis is unreachable the limiter fails open: availability of the
// metered API matters more than strict enforcement.
type FixedWindowLimiter struct {
	client redis.UniversalClient
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewFixedWindowLimiter creates a limiter over the given client. A nil
// client yields a limiter that is permanently degraded.
func NewFixedWindowLimiter(client redis.UniversalClient, logger *zap.Logger) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		client: client,
		window: time.Minute,
		logger: logger,
		now:    time.Now,
	}
}

// Allow admits or rejects one request for the key. A non-positive limit
// means unmetered access.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)

	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: -1, ResetAt: resetAt}, nil
	}
	if l.client == nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt, Degraded: true}, nil
	}

	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	// Expiry slightly past the window end so in-flight checks still see it
	pipe.Expire(ctx, counterKey, l.window+10*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit store unavailable, admitting request",
			zap.String("key", key),
			zap.Error(err))
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt, Degraded: true}, nil
	}

	count := incr.Val()
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}

var _ Limiter = (*FixedWindowLimiter)(nil)

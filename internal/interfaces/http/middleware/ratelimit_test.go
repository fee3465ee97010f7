package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/infrastructure/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// stubLimiter returns a canned decision
type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	lastKey  string
}

func (l *stubLimiter) Allow(_ context.Context, key string, limit int) (ratelimit.Decision, error) {
	l.lastKey = key
	return l.decision, l.err
}

func rateLimitRouter(limiter ratelimit.Limiter) (*gin.Engine, uuid.UUID) {
	subscriberID := uuid.New()
	router := gin.New()
	router.GET("/metered",
		func(c *gin.Context) {
			// Stand-in for RequireAuth
			c.Set(ContextSubscriberID, subscriberID.String())
			tier, _ := billing.DefaultCatalog().ByID(billing.TierStarter)
			c.Set(ContextTier, tier)
		},
		RateLimit(limiter, zap.NewNop()),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	return router, subscriberID
}

func TestRateLimitAllowsAndSetsHeaders(t *testing.T) {
	resetAt := time.Date(2026, time.March, 15, 10, 31, 0, 0, time.UTC)
	limiter := &stubLimiter{decision: ratelimit.Decision{
		Allowed:   true,
		Limit:     100,
		Remaining: 42,
		ResetAt:   resetAt,
	}}
	router, subscriberID := rateLimitRouter(limiter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metered", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "42", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, strconv.FormatInt(resetAt.Unix(), 10), w.Header().Get("X-RateLimit-Reset"))
	// The limiter is keyed by subscriber, not by IP
	assert.Equal(t, subscriberID.String(), limiter.lastKey)
}

func TestRateLimitRejectsWithHeaders(t *testing.T) {
	limiter := &stubLimiter{decision: ratelimit.Decision{
		Allowed:   false,
		Limit:     100,
		Remaining: 0,
		ResetAt:   time.Now().Add(30 * time.Second),
	}}
	router, _ := rateLimitRouter(limiter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metered", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRateLimitAdmitsOnLimiterError(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("boom")}
	router, _ := rateLimitRouter(limiter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metered", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitSkipsUnauthenticatedRequests(t *testing.T) {
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: false}}
	router := gin.New()
	router.GET("/open", RateLimit(limiter, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.lastKey)
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/saasforge/backend/internal/infrastructure/ratelimit"
	"github.com/saasforge/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// RateLimit enforces the per-minute budget of the caller's tier. Must run
// after RequireAuth. Standard X-RateLimit headers go out on every response,
// including rejections.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subscriberID, ok := GetSubscriberID(c)
		if !ok {
			// Unauthenticated requests never reach here on metered routes
			c.Next()
			return
		}
		tier, _ := GetTier(c)

		decision, err := limiter.Allow(c.Request.Context(), subscriberID.String(), tier.RateLimitPerMinute)
		if err != nil {
			logger.Error("rate limiter error, admitting request",
				zap.String("subscriber_id", subscriberID.String()),
				zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Rate limit exceeded, retry after the window resets"))
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appidentity "github.com/saasforge/backend/internal/application/identity"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/identity"
	"github.com/saasforge/backend/internal/infrastructure/auth"
	"github.com/saasforge/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Context keys set by the auth middleware
const (
	ContextSubscriberID = "subscriber_id"
	ContextSubscriber   = "subscriber"
	ContextTier         = "tier"
)

// Authenticator authenticates metered API requests with either an API key
// or a session token, then resolves the caller's tier for the middlewares
// downstream.
type Authenticator struct {
	keys        *appidentity.APIKeyService
	sessions    identity.SessionVerifier
	subscribers billing.SubscriberRepository
	catalog     *billing.Catalog
	logger      *zap.Logger
}

// NewAuthenticator creates the auth middleware
func NewAuthenticator(
	keys *appidentity.APIKeyService,
	sessions identity.SessionVerifier,
	subscribers billing.SubscriberRepository,
	catalog *billing.Catalog,
	logger *zap.Logger,
) *Authenticator {
	return &Authenticator{
		keys:        keys,
		sessions:    sessions,
		subscribers: subscribers,
		catalog:     catalog,
		logger:      logger,
	}
}

// RequireAuth aborts with 401 unless the request carries a valid credential
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := bearerToken(c)
		if credential == "" {
			abortUnauthorized(c, "Missing bearer credential")
			return
		}

		subscriberID, ok := a.resolveCredential(c, credential)
		if !ok {
			return
		}

		subscriber, err := a.subscribers.FindByID(c.Request.Context(), subscriberID)
		if err != nil {
			a.logger.Warn("authenticated credential for unknown subscriber",
				zap.String("subscriber_id", subscriberID.String()),
				zap.Error(err))
			abortUnauthorized(c, "Unknown subscriber")
			return
		}

		tier := a.catalog.Resolve(subscriber.PriceID, subscriber.SubscriptionStatus)

		c.Set(ContextSubscriberID, subscriber.ID.String())
		c.Set(ContextSubscriber, subscriber)
		c.Set(ContextTier, tier)
		c.Next()
	}
}

func (a *Authenticator) resolveCredential(c *gin.Context, credential string) (uuid.UUID, bool) {
	if auth.LooksLikeAPIKey(credential) {
		key, err := a.keys.Resolve(c.Request.Context(), credential)
		if err != nil {
			abortUnauthorized(c, "Invalid API key")
			return uuid.Nil, false
		}
		return key.SubscriberID, true
	}

	subscriberID, err := a.sessions.Verify(c.Request.Context(), credential)
	if err != nil {
		abortUnauthorized(c, "Invalid session token")
		return uuid.Nil, false
	}
	return subscriberID, true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(dto.ErrCodeUnauthorized, message))
}

// GetSubscriberID returns the authenticated subscriber id
func GetSubscriberID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(ContextSubscriberID)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetSubscriber returns the authenticated subscriber entity
func GetSubscriber(c *gin.Context) (*billing.Subscriber, bool) {
	v, ok := c.Get(ContextSubscriber)
	if !ok {
		return nil, false
	}
	subscriber, ok := v.(*billing.Subscriber)
	return subscriber, ok
}

// GetTier returns the tier resolved for the authenticated subscriber
func GetTier(c *gin.Context) (billing.Tier, bool) {
	v, ok := c.Get(ContextTier)
	if !ok {
		return billing.Tier{}, false
	}
	tier, ok := v.(billing.Tier)
	return tier, ok
}

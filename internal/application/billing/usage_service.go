package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"go.uber.org/zap"
)

// UsageSummary is a subscriber's standing in the current billing period
type UsageSummary struct {
	Period    string `json:"period"`
	Tier      string `json:"tier"`
	TierName  string `json:"tierName"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Unlimited bool   `json:"unlimited"`
	Percent   int    `json:"percent"`
	Remaining int64  `json:"remaining"`
	// OverageUnitPrice is the per-call price applied beyond the limit
	OverageUnitPrice string `json:"overageUnitPrice"`
	RateLimitPerMin  int    `json:"rateLimitPerMinute"`
}

// UsageService answers usage questions for the dashboard
type UsageService struct {
	subscribers billing.SubscriberRepository
	usage       billing.UsageEventRepository
	catalog     *billing.Catalog
	logger      *zap.Logger
	now         func() time.Time
}

// NewUsageService creates a usage service
func NewUsageService(
	subscribers billing.SubscriberRepository,
	usage billing.UsageEventRepository,
	catalog *billing.Catalog,
	logger *zap.Logger,
) *UsageService {
	return &UsageService{
		subscribers: subscribers,
		usage:       usage,
		catalog:     catalog,
		logger:      logger,
		now:         time.Now,
	}
}

// Summary returns the subscriber's current-period usage against their tier
func (s *UsageService) Summary(ctx context.Context, subscriberID uuid.UUID) (*UsageSummary, error) {
	subscriber, err := s.subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}

	period := billing.CurrentMonth(s.now())
	used, err := s.usage.CountBySubscriber(ctx, subscriberID, period)
	if err != nil {
		return nil, fmt.Errorf("count usage: %w", err)
	}

	tier := s.catalog.Resolve(subscriber.PriceID, subscriber.SubscriptionStatus)
	summary := &UsageSummary{
		Period:           period.Label(),
		Tier:             string(tier.ID),
		TierName:         tier.Name,
		Used:             used,
		Limit:            tier.APICallLimit,
		OverageUnitPrice: tier.OverageUnitPrice.String(),
		RateLimitPerMin:  tier.RateLimitPerMinute,
	}

	if tier.APICallLimit == billing.UnlimitedCalls {
		summary.Unlimited = true
		summary.Remaining = -1
		return summary, nil
	}

	summary.Percent = int(used * 100 / tier.APICallLimit)
	summary.Remaining = tier.APICallLimit - used
	if summary.Remaining < 0 {
		summary.Remaining = 0
	}
	return summary, nil
}

// RecentEvents returns the subscriber's latest calls in the current period
func (s *UsageService) RecentEvents(ctx context.Context, subscriberID uuid.UUID, limit int) ([]*billing.UsageEvent, error) {
	period := billing.CurrentMonth(s.now())
	return s.usage.FindBySubscriber(ctx, subscriberID, period, limit)
}

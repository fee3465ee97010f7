package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/application/jobs"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/job"
	"go.uber.org/zap"
)

// Alert levels
const (
	AlertLevelWarning  = "warning"
	AlertLevelExceeded = "exceeded"
)

// warningThresholdPercent is where the approaching-limit alert begins
const warningThresholdPercent = 80

// EventEmitter enqueues workflow events
type EventEmitter interface {
	Emit(ctx context.Context, event job.Event) error
}

// AlertResult is the classification of one subscriber in an alert sweep
type AlertResult struct {
	SubscriberID uuid.UUID `json:"subscriberId"`
	Email        string    `json:"email"`
	Tier         string    `json:"tier"`
	Used         int64     `json:"used"`
	Limit        int64     `json:"limit"`
	Percent      int       `json:"percent"`
	Level        string    `json:"level"`
	// Notified is false when a matching alert already went out this period
	Notified bool `json:"notified"`
}

// AlertService sweeps current-month usage and raises threshold alerts.
// Classification is pure; the marker store only suppresses duplicate
// notifications, never changes what the sweep reports.
type AlertService struct {
	subscribers billing.SubscriberRepository
	usage       billing.UsageEventRepository
	marker      billing.AlertMarker
	emitter     EventEmitter
	catalog     *billing.Catalog
	logger      *zap.Logger
	now         func() time.Time
}

// NewAlertService creates an alert service
func NewAlertService(
	subscribers billing.SubscriberRepository,
	usage billing.UsageEventRepository,
	marker billing.AlertMarker,
	emitter EventEmitter,
	catalog *billing.Catalog,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		subscribers: subscribers,
		usage:       usage,
		marker:      marker,
		emitter:     emitter,
		catalog:     catalog,
		logger:      logger,
		now:         time.Now,
	}
}

// Sweep checks every subscriber, whatever their subscription status,
// against their monthly limit and emits warning or exceeded events for
// those past a threshold. Subscribers without a paid plan are metered on
// the free allowance. At most one notification per subscriber per level
// per period goes out.
func (s *AlertService) Sweep(ctx context.Context) ([]AlertResult, error) {
	now := s.now()
	period := billing.CurrentMonth(now)
	markerTTL := period.End.Sub(now) + time.Hour

	subscribers, err := s.subscribers.FindAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	var results []AlertResult
	for _, subscriber := range subscribers {
		tier := s.catalog.Resolve(subscriber.PriceID, subscriber.SubscriptionStatus)
		if tier.APICallLimit == billing.UnlimitedCalls {
			continue
		}

		used, err := s.usage.CountBySubscriber(ctx, subscriber.ID, period)
		if err != nil {
			s.logger.Error("failed to count usage for alert sweep",
				zap.String("subscriber_id", subscriber.ID.String()),
				zap.Error(err))
			continue
		}

		percent := int(used * 100 / tier.APICallLimit)
		level := classify(percent)
		if level == "" {
			continue
		}

		result := AlertResult{
			SubscriberID: subscriber.ID,
			Email:        subscriber.Email,
			Tier:         string(tier.ID),
			Used:         used,
			Limit:        tier.APICallLimit,
			Percent:      percent,
			Level:        level,
		}

		markerKey := fmt.Sprintf("%s:%s:%s", subscriber.ID, period.Label(), level)
		fresh, err := s.marker.MarkSent(ctx, markerKey, markerTTL)
		if err != nil {
			s.logger.Warn("alert marker store unavailable, notifying anyway",
				zap.String("subscriber_id", subscriber.ID.String()),
				zap.Error(err))
			fresh = true
		}

		if fresh {
			if err := s.emitter.Emit(ctx, alertEvent(subscriber.ID, level, used, tier.APICallLimit, percent)); err != nil {
				s.logger.Error("failed to emit usage alert",
					zap.String("subscriber_id", subscriber.ID.String()),
					zap.String("level", level),
					zap.Error(err))
			} else {
				result.Notified = true
			}
		}
		results = append(results, result)
	}

	s.logger.Info("usage alert sweep finished",
		zap.String("period", period.Label()),
		zap.Int("checked", len(subscribers)),
		zap.Int("alerts", len(results)))
	return results, nil
}

// classify maps a usage percentage to an alert level. Below the warning
// threshold there is no alert.
func classify(percent int) string {
	switch {
	case percent >= 100:
		return AlertLevelExceeded
	case percent >= warningThresholdPercent:
		return AlertLevelWarning
	default:
		return ""
	}
}

func alertEvent(subscriberID uuid.UUID, level string, used, limit int64, percent int) job.Event {
	name := jobs.EventUsageWarning
	if level == AlertLevelExceeded {
		name = jobs.EventUsageExceeded
	}
	return job.Event{
		Name: name,
		Data: map[string]any{
			"subscriberId": subscriberID.String(),
			"used":         used,
			"limit":        limit,
			"percent":      percent,
		},
	}
}

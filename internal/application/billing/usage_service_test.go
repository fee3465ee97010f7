package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestUsageService(subscribers *MockSubscriberRepository, usage *MockUsageEventRepository) *UsageService {
	svc := NewUsageService(subscribers, usage, billing.DefaultCatalog(), zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestUsageSummary(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	svc := newTestUsageService(subscribers, usage)

	subscriber := activeSubscriber(t, "user@example.com", "price_starter_monthly")
	subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
	usage.On("CountBySubscriber", mock.Anything, subscriber.ID, mock.Anything).
		Return(int64(250), nil)

	summary, err := svc.Summary(context.Background(), subscriber.ID)
	require.NoError(t, err)

	assert.Equal(t, "2026-03", summary.Period)
	assert.Equal(t, "starter", summary.Tier)
	assert.Equal(t, int64(250), summary.Used)
	assert.Equal(t, int64(1000), summary.Limit)
	assert.Equal(t, 25, summary.Percent)
	assert.Equal(t, int64(750), summary.Remaining)
	assert.False(t, summary.Unlimited)
}

func TestUsageSummaryOverLimitClampsRemaining(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	svc := newTestUsageService(subscribers, usage)

	subscriber := activeSubscriber(t, "user@example.com", "price_starter_monthly")
	subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
	usage.On("CountBySubscriber", mock.Anything, subscriber.ID, mock.Anything).
		Return(int64(1200), nil)

	summary, err := svc.Summary(context.Background(), subscriber.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, summary.Percent)
	assert.Zero(t, summary.Remaining)
}

func TestUsageSummaryUnlimitedTier(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	svc := newTestUsageService(subscribers, usage)

	subscriber := activeSubscriber(t, "bigco@example.com", "price_ent_monthly")
	subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
	usage.On("CountBySubscriber", mock.Anything, subscriber.ID, mock.Anything).
		Return(int64(5_000_000), nil)

	summary, err := svc.Summary(context.Background(), subscriber.ID)
	require.NoError(t, err)
	assert.True(t, summary.Unlimited)
	assert.Equal(t, int64(-1), summary.Remaining)
	assert.Zero(t, summary.Percent)
}

func TestUsageSummaryUnknownSubscriber(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	svc := newTestUsageService(subscribers, usage)

	subscribers.On("FindByID", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)

	_, err := svc.Summary(context.Background(), uuid.New())
	assert.Error(t, err)
}

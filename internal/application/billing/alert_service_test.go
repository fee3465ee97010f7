package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saasforge/backend/internal/application/jobs"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAlertService(
	subscribers *MockSubscriberRepository,
	usage *MockUsageEventRepository,
	marker *MockAlertMarker,
	emitter *MockEmitter,
) *AlertService {
	svc := NewAlertService(
		subscribers, usage, marker, emitter,
		billing.DefaultCatalog(), zap.NewNop(),
	)
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 15, 2, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "", classify(0))
	assert.Equal(t, "", classify(79))
	assert.Equal(t, AlertLevelWarning, classify(80))
	assert.Equal(t, AlertLevelWarning, classify(99))
	assert.Equal(t, AlertLevelExceeded, classify(100))
	assert.Equal(t, AlertLevelExceeded, classify(250))
}

func TestSweepEmitsThresholdAlerts(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	marker := new(MockAlertMarker)
	emitter := new(MockEmitter)
	svc := newTestAlertService(subscribers, usage, marker, emitter)

	quiet := activeSubscriber(t, "quiet@example.com", "price_starter_monthly")
	warned := activeSubscriber(t, "warned@example.com", "price_starter_monthly")
	exceeded := activeSubscriber(t, "exceeded@example.com", "price_starter_monthly")

	subscribers.On("FindAll", mock.Anything, (*billing.SubscriptionStatus)(nil)).
		Return([]*billing.Subscriber{quiet, warned, exceeded}, nil)
	usage.On("CountBySubscriber", mock.Anything, quiet.ID, mock.Anything).Return(int64(790), nil)
	usage.On("CountBySubscriber", mock.Anything, warned.ID, mock.Anything).Return(int64(800), nil)
	usage.On("CountBySubscriber", mock.Anything, exceeded.ID, mock.Anything).Return(int64(1250), nil)

	marker.On("MarkSent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(event job.Event) bool {
		return event.Name == jobs.EventUsageWarning && event.Data["subscriberId"] == warned.ID.String()
	})).Return(nil)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(event job.Event) bool {
		return event.Name == jobs.EventUsageExceeded && event.Data["subscriberId"] == exceeded.ID.String()
	})).Return(nil)

	results, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	// Below-threshold subscribers do not appear at all
	require.Len(t, results, 2)
	byEmail := map[string]AlertResult{}
	for _, r := range results {
		byEmail[r.Email] = r
	}
	assert.Equal(t, AlertLevelWarning, byEmail["warned@example.com"].Level)
	assert.Equal(t, 80, byEmail["warned@example.com"].Percent)
	assert.True(t, byEmail["warned@example.com"].Notified)
	assert.Equal(t, AlertLevelExceeded, byEmail["exceeded@example.com"].Level)
	assert.Equal(t, 125, byEmail["exceeded@example.com"].Percent)
	assert.True(t, byEmail["exceeded@example.com"].Notified)

	emitter.AssertNumberOfCalls(t, "Emit", 2)
}

func TestSweepCoversSubscribersWithoutActivePlan(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	marker := new(MockAlertMarker)
	emitter := new(MockEmitter)
	svc := newTestAlertService(subscribers, usage, marker, emitter)

	// Never subscribed, so metered on the free allowance of 100 calls
	free, err := billing.NewSubscriber("free@example.com", "Free User")
	require.NoError(t, err)

	subscribers.On("FindAll", mock.Anything, (*billing.SubscriptionStatus)(nil)).
		Return([]*billing.Subscriber{free}, nil)
	usage.On("CountBySubscriber", mock.Anything, free.ID, mock.Anything).Return(int64(90), nil)
	marker.On("MarkSent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(event job.Event) bool {
		return event.Name == jobs.EventUsageWarning && event.Data["subscriberId"] == free.ID.String()
	})).Return(nil)

	results, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "free", results[0].Tier)
	assert.Equal(t, int64(100), results[0].Limit)
	assert.Equal(t, 90, results[0].Percent)
	assert.Equal(t, AlertLevelWarning, results[0].Level)
	assert.True(t, results[0].Notified)
	emitter.AssertNumberOfCalls(t, "Emit", 1)
}

func TestSweepSuppressesDuplicateNotifications(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	marker := new(MockAlertMarker)
	emitter := new(MockEmitter)
	svc := newTestAlertService(subscribers, usage, marker, emitter)

	subscriber := activeSubscriber(t, "warned@example.com", "price_starter_monthly")
	subscribers.On("FindAll", mock.Anything, (*billing.SubscriptionStatus)(nil)).
		Return([]*billing.Subscriber{subscriber}, nil)
	usage.On("CountBySubscriber", mock.Anything, subscriber.ID, mock.Anything).Return(int64(850), nil)

	// A warning for this subscriber and period already went out
	marker.On("MarkSent", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	results, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	// The sweep still reports the classification, it just stays quiet
	require.Len(t, results, 1)
	assert.Equal(t, AlertLevelWarning, results[0].Level)
	assert.False(t, results[0].Notified)
	emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestSweepNotifiesWhenMarkerStoreIsDown(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	marker := new(MockAlertMarker)
	emitter := new(MockEmitter)
	svc := newTestAlertService(subscribers, usage, marker, emitter)

	subscriber := activeSubscriber(t, "warned@example.com", "price_starter_monthly")
	subscribers.On("FindAll", mock.Anything, (*billing.SubscriptionStatus)(nil)).
		Return([]*billing.Subscriber{subscriber}, nil)
	usage.On("CountBySubscriber", mock.Anything, subscriber.ID, mock.Anything).Return(int64(900), nil)

	// A possible duplicate email beats a missed alert
	marker.On("MarkSent", mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.New("redis: connection refused"))
	emitter.On("Emit", mock.Anything, mock.Anything).Return(nil)

	results, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Notified)
	emitter.AssertNumberOfCalls(t, "Emit", 1)
}

func TestSweepSkipsUnlimitedTiers(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	marker := new(MockAlertMarker)
	emitter := new(MockEmitter)
	svc := newTestAlertService(subscribers, usage, marker, emitter)

	subscriber := activeSubscriber(t, "bigco@example.com", "price_ent_monthly")
	subscribers.On("FindAll", mock.Anything, (*billing.SubscriptionStatus)(nil)).
		Return([]*billing.Subscriber{subscriber}, nil)

	results, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	usage.AssertNotCalled(t, "CountBySubscriber", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepMarkerTTLCoversRestOfPeriod(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	usage := new(MockUsageEventRepository)
	marker := new(MockAlertMarker)
	emitter := new(MockEmitter)
	svc := newTestAlertService(subscribers, usage, marker, emitter)

	subscriber := activeSubscriber(t, "warned@example.com", "price_starter_monthly")
	subscribers.On("FindAll", mock.Anything, (*billing.SubscriptionStatus)(nil)).
		Return([]*billing.Subscriber{subscriber}, nil)
	usage.On("CountBySubscriber", mock.Anything, subscriber.ID, mock.Anything).Return(int64(850), nil)

	// March 15 02:00 to April 1 00:00 is 16d22h, plus the one-hour margin
	wantTTL := 16*24*time.Hour + 23*time.Hour
	marker.On("MarkSent", mock.Anything, mock.Anything, wantTTL).Return(true, nil)
	emitter.On("Emit", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	marker.AssertExpectations(t)
}

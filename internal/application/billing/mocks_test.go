package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/job"
	"github.com/stretchr/testify/mock"
)

// MockSubscriberRepository is a mock implementation of SubscriberRepository
type MockSubscriberRepository struct {
	mock.Mock
}

func (m *MockSubscriberRepository) Save(ctx context.Context, subscriber *billing.Subscriber) error {
	args := m.Called(ctx, subscriber)
	return args.Error(0)
}

func (m *MockSubscriberRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) FindByEmail(ctx context.Context, email string) (*billing.Subscriber, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*billing.Subscriber, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscriber, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) FindAll(ctx context.Context, status *billing.SubscriptionStatus) ([]*billing.Subscriber, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Subscriber), args.Error(1)
}

// MockSubscriptionRepository is a mock implementation of SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Save(ctx context.Context, subscription *billing.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) FindCurrentBySubscriber(ctx context.Context, subscriberID uuid.UUID) (*billing.Subscription, error) {
	args := m.Called(ctx, subscriberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) FindTrialsEndingBefore(ctx context.Context, cutoff time.Time) ([]*billing.Subscription, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Subscription), args.Error(1)
}

// MockUsageEventRepository is a mock implementation of UsageEventRepository
type MockUsageEventRepository struct {
	mock.Mock
}

func (m *MockUsageEventRepository) Save(ctx context.Context, event *billing.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockUsageEventRepository) SaveBatch(ctx context.Context, events []*billing.UsageEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockUsageEventRepository) CountBySubscriber(ctx context.Context, subscriberID uuid.UUID, period billing.Period) (int64, error) {
	args := m.Called(ctx, subscriberID, period)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageEventRepository) FindBySubscriber(ctx context.Context, subscriberID uuid.UUID, period billing.Period, limit int) ([]*billing.UsageEvent, error) {
	args := m.Called(ctx, subscriberID, period, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockBillingActionRepository is a mock implementation of BillingActionRepository
type MockBillingActionRepository struct {
	mock.Mock
}

func (m *MockBillingActionRepository) Save(ctx context.Context, action *billing.BillingAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockBillingActionRepository) Update(ctx context.Context, action *billing.BillingAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockBillingActionRepository) FindBySubscriberAndPeriod(ctx context.Context, subscriberID uuid.UUID, periodStart time.Time) (*billing.BillingAction, error) {
	args := m.Called(ctx, subscriberID, periodStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingAction), args.Error(1)
}

func (m *MockBillingActionRepository) FindByPeriod(ctx context.Context, periodStart time.Time) ([]*billing.BillingAction, error) {
	args := m.Called(ctx, periodStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.BillingAction), args.Error(1)
}

// MockInvoicer is a mock implementation of Invoicer
type MockInvoicer struct {
	mock.Mock
}

func (m *MockInvoicer) CreateInvoiceItem(ctx context.Context, input billing.InvoiceItemInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockInvoicer) CreateInvoice(ctx context.Context, input billing.InvoiceInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

// MockAlertMarker is a mock implementation of AlertMarker
type MockAlertMarker struct {
	mock.Mock
}

func (m *MockAlertMarker) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

// MockEmitter is a mock implementation of EventEmitter
type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, event job.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/saasforge/backend/internal/application/jobs"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/job"
	"github.com/saasforge/backend/internal/domain/shared"
	infrabilling "github.com/saasforge/backend/internal/infrastructure/billing"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_123"

func newTestWebhookService(
	subscribers *MockSubscriberRepository,
	subscriptions *MockSubscriptionRepository,
	emitter *MockEmitter,
) *WebhookService {
	return NewWebhookService(WebhookServiceConfig{
		Config:        infrabilling.NewStripeConfig("sk_test_123", testWebhookSecret),
		Subscribers:   subscribers,
		Subscriptions: subscriptions,
		Catalog:       billing.DefaultCatalog(),
		Emitter:       emitter,
		Logger:        zap.NewNop(),
	})
}

// signedPayload produces a webhook body and a valid Stripe-Signature header
// for an event of the given type wrapping the given object
func signedPayload(t *testing.T, eventType string, object any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_test_1",
		"type": eventType,
		"data": map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestProcessWebhookRejectsBadSignature(t *testing.T) {
	svc := newTestWebhookService(new(MockSubscriberRepository), new(MockSubscriptionRepository), new(MockEmitter))

	payload, _ := signedPayload(t, "customer.subscription.updated", map[string]any{"id": "sub_1"})
	_, err := svc.ProcessWebhook(context.Background(), payload, "t=123,v1=deadbeef")
	assert.True(t, errors.Is(err, shared.ErrInvalidSignature))
}

func TestProcessWebhookIgnoresUnknownEventTypes(t *testing.T) {
	svc := newTestWebhookService(new(MockSubscriberRepository), new(MockSubscriptionRepository), new(MockEmitter))

	payload, header := signedPayload(t, "customer.created", map[string]any{"id": "cus_1"})
	result, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, "Event type not handled", result.Message)
}

func TestCheckoutCompletedLinksExistingSubscriber(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	svc := newTestWebhookService(subscribers, new(MockSubscriptionRepository), new(MockEmitter))

	subscriber, err := billing.NewSubscriber("buyer@example.com", "Buyer")
	require.NoError(t, err)
	subscribers.On("FindByEmail", mock.Anything, "buyer@example.com").Return(subscriber, nil)
	subscribers.On("Save", mock.Anything, mock.MatchedBy(func(s *billing.Subscriber) bool {
		return s.StripeCustomerID == "cus_new" && s.StripeSubscriptionID == "sub_new"
	})).Return(nil)

	payload, header := signedPayload(t, "checkout.session.completed", map[string]any{
		"id":             "cs_1",
		"mode":           "subscription",
		"customer_email": "buyer@example.com",
		"customer":       map[string]any{"id": "cus_new"},
		"subscription":   map[string]any{"id": "sub_new"},
	})
	result, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	subscribers.AssertExpectations(t)
}

func TestCheckoutCompletedCreatesSubscriberOnFirstPurchase(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	svc := newTestWebhookService(subscribers, new(MockSubscriptionRepository), new(MockEmitter))

	subscribers.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, shared.ErrNotFound)
	subscribers.On("Save", mock.Anything, mock.MatchedBy(func(s *billing.Subscriber) bool {
		return s.Email == "new@example.com" && s.StripeCustomerID == "cus_new"
	})).Return(nil)

	payload, header := signedPayload(t, "checkout.session.completed", map[string]any{
		"id":       "cs_1",
		"mode":     "subscription",
		"customer": map[string]any{"id": "cus_new"},
		"customer_details": map[string]any{
			"email": "new@example.com",
		},
	})
	_, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	subscribers.AssertExpectations(t)
}

func TestCheckoutCompletedIgnoresOneTimePayments(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	svc := newTestWebhookService(subscribers, new(MockSubscriptionRepository), new(MockEmitter))

	payload, header := signedPayload(t, "checkout.session.completed", map[string]any{
		"id":             "cs_1",
		"mode":           "payment",
		"customer_email": "buyer@example.com",
	})
	_, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	subscribers.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func subscriptionObject(status, priceID string) map[string]any {
	return map[string]any{
		"id":       "sub_1",
		"status":   status,
		"customer": map[string]any{"id": "cus_1"},
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": priceID}},
			},
		},
		"current_period_end": time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
}

func TestSubscriptionUpdatedAppliesTierAndEmitsCreatedEvent(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	subscriptions := new(MockSubscriptionRepository)
	emitter := new(MockEmitter)
	svc := newTestWebhookService(subscribers, subscriptions, emitter)

	subscriber, err := billing.NewSubscriber("buyer@example.com", "Buyer")
	require.NoError(t, err)
	subscriber.StripeCustomerID = "cus_1"

	subscribers.On("FindByStripeCustomerID", mock.Anything, "cus_1").Return(subscriber, nil)
	subscribers.On("Save", mock.Anything, mock.MatchedBy(func(s *billing.Subscriber) bool {
		return s.SubscriptionStatus == billing.SubscriptionStatusActive &&
			s.PriceID == "price_pro_monthly" &&
			s.StripeSubscriptionID == "sub_1"
	})).Return(nil)
	subscriptions.On("FindByStripeSubscriptionID", mock.Anything, "sub_1").Return(nil, shared.ErrNotFound)
	subscriptions.On("Save", mock.Anything, mock.AnythingOfType("*billing.Subscription")).Return(nil)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(event job.Event) bool {
		return event.Name == jobs.EventSubscriptionCreated &&
			event.Data["subscriberId"] == subscriber.ID.String()
	})).Return(nil)

	payload, header := signedPayload(t, "customer.subscription.created",
		subscriptionObject("active", "price_pro_monthly"))
	result, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	subscribers.AssertExpectations(t)
	subscriptions.AssertExpectations(t)
	emitter.AssertExpectations(t)
}

func TestSubscriptionUpdatedDoesNotReEmitForAlreadyActive(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	subscriptions := new(MockSubscriptionRepository)
	emitter := new(MockEmitter)
	svc := newTestWebhookService(subscribers, subscriptions, emitter)

	subscriber := activeSubscriber(t, "buyer@example.com", "price_starter_monthly")
	subscribers.On("FindByStripeCustomerID", mock.Anything, "cus_1").Return(subscriber, nil)
	subscribers.On("Save", mock.Anything, mock.Anything).Return(nil)

	record, err := billing.NewSubscription(subscriber.ID, "sub_1", "cus_1", "price_starter_monthly",
		billing.SubscriptionStatusActive, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	subscriptions.On("FindByStripeSubscriptionID", mock.Anything, "sub_1").Return(record, nil)
	subscriptions.On("Save", mock.Anything, mock.MatchedBy(func(r *billing.Subscription) bool {
		return r.StripePriceID == "price_pro_monthly"
	})).Return(nil)

	// Plan change on an already-active subscription is not a new signup
	payload, header := signedPayload(t, "customer.subscription.updated",
		subscriptionObject("active", "price_pro_monthly"))
	_, err = svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	emitter.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestSubscriptionUpdatedEmitsTrialEnding(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	subscriptions := new(MockSubscriptionRepository)
	emitter := new(MockEmitter)
	svc := newTestWebhookService(subscribers, subscriptions, emitter)

	subscriber, err := billing.NewSubscriber("trial@example.com", "Trialer")
	require.NoError(t, err)
	subscriber.StripeCustomerID = "cus_1"
	subscribers.On("FindByStripeCustomerID", mock.Anything, "cus_1").Return(subscriber, nil)
	subscribers.On("Save", mock.Anything, mock.Anything).Return(nil)
	subscriptions.On("FindByStripeSubscriptionID", mock.Anything, "sub_1").Return(nil, shared.ErrNotFound)
	subscriptions.On("Save", mock.Anything, mock.Anything).Return(nil)

	trialEnd := time.Now().Add(14 * 24 * time.Hour).Unix()
	object := subscriptionObject("trialing", "price_pro_monthly")
	object["trial_end"] = trialEnd
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(event job.Event) bool {
		return event.Name == jobs.EventTrialEnding &&
			event.Data["trialEnd"] == time.Unix(trialEnd, 0).UTC().Format(time.RFC3339)
	})).Return(nil)

	payload, header := signedPayload(t, "customer.subscription.updated", object)
	_, err = svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	emitter.AssertExpectations(t)
}

func TestSubscriptionUpdatedFailsWhenSubscriberUnknown(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	svc := newTestWebhookService(subscribers, new(MockSubscriptionRepository), new(MockEmitter))

	subscribers.On("FindByStripeCustomerID", mock.Anything, "cus_1").Return(nil, shared.ErrNotFound)

	// Returning an error makes Stripe redeliver once checkout linking lands
	payload, header := signedPayload(t, "customer.subscription.updated",
		subscriptionObject("active", "price_pro_monthly"))
	result, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.Error(t, err)
	assert.False(t, result.Processed)
}

func TestSubscriptionDeletedCancelsSubscriber(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	subscriptions := new(MockSubscriptionRepository)
	svc := newTestWebhookService(subscribers, subscriptions, new(MockEmitter))

	subscriber := activeSubscriber(t, "leaver@example.com", "price_pro_monthly")
	subscribers.On("FindByStripeSubscriptionID", mock.Anything, "sub_1").Return(subscriber, nil)
	subscribers.On("Save", mock.Anything, mock.MatchedBy(func(s *billing.Subscriber) bool {
		return s.SubscriptionStatus == billing.SubscriptionStatusCanceled
	})).Return(nil)

	record, err := billing.NewSubscription(subscriber.ID, "sub_1", "cus_1", "price_pro_monthly",
		billing.SubscriptionStatusActive, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	subscriptions.On("FindByStripeSubscriptionID", mock.Anything, "sub_1").Return(record, nil)
	subscriptions.On("Save", mock.Anything, mock.MatchedBy(func(r *billing.Subscription) bool {
		return r.Status == billing.SubscriptionStatusCanceled
	})).Return(nil)

	payload, header := signedPayload(t, "customer.subscription.deleted", map[string]any{"id": "sub_1"})
	result, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	subscribers.AssertExpectations(t)
	subscriptions.AssertExpectations(t)
}

func TestSubscriptionDeletedIsIdempotent(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	svc := newTestWebhookService(subscribers, new(MockSubscriptionRepository), new(MockEmitter))

	subscribers.On("FindByStripeSubscriptionID", mock.Anything, "sub_gone").Return(nil, shared.ErrNotFound)

	payload, header := signedPayload(t, "customer.subscription.deleted", map[string]any{"id": "sub_gone"})
	result, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	subscribers.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestInvoicePaymentFailedHandsOffToDunning(t *testing.T) {
	subscribers := new(MockSubscriberRepository)
	emitter := new(MockEmitter)
	svc := newTestWebhookService(subscribers, new(MockSubscriptionRepository), emitter)

	subscriber := activeSubscriber(t, "late@example.com", "price_pro_monthly")
	subscribers.On("FindByStripeCustomerID", mock.Anything, "cus_1").Return(subscriber, nil)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(event job.Event) bool {
		return event.Name == jobs.EventPaymentFailed &&
			event.Data["subscriberId"] == subscriber.ID.String() &&
			fmt.Sprintf("%v", event.Data["attempt"]) == "3"
	})).Return(nil)

	payload, header := signedPayload(t, "invoice.payment_failed", map[string]any{
		"id":            "in_1",
		"customer":      map[string]any{"id": "cus_1"},
		"attempt_count": 3,
	})
	_, err := svc.ProcessWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	emitter.AssertExpectations(t)
}

func TestMapStripeStatus(t *testing.T) {
	assert.Equal(t, billing.SubscriptionStatusActive, mapStripeStatus("active"))
	assert.Equal(t, billing.SubscriptionStatusTrialing, mapStripeStatus("trialing"))
	assert.Equal(t, billing.SubscriptionStatusPastDue, mapStripeStatus("past_due"))
	assert.Equal(t, billing.SubscriptionStatusPastDue, mapStripeStatus("unpaid"))
	assert.Equal(t, billing.SubscriptionStatusCanceled, mapStripeStatus("canceled"))
	assert.Equal(t, billing.SubscriptionStatusCanceled, mapStripeStatus("incomplete_expired"))
	assert.Equal(t, billing.SubscriptionStatusNone, mapStripeStatus("incomplete"))
}

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saasforge/backend/internal/application/jobs"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/job"
	"github.com/saasforge/backend/internal/domain/shared"
	infrabilling "github.com/saasforge/backend/internal/infrastructure/billing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// WebhookService keeps local subscription state in sync with Stripe events.
// Handlers are idempotent: Stripe retries deliveries, so reprocessing an
// already-applied event must change nothing.
type WebhookService struct {
	config        *infrabilling.StripeConfig
	subscribers   billing.SubscriberRepository
	subscriptions billing.SubscriptionRepository
	catalog       *billing.Catalog
	emitter       EventEmitter
	logger        *zap.Logger
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Config        *infrabilling.StripeConfig
	Subscribers   billing.SubscriberRepository
	Subscriptions billing.SubscriptionRepository
	Catalog       *billing.Catalog
	Emitter       EventEmitter
	Logger        *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	return &WebhookService{
		config:        cfg.Config,
		subscribers:   cfg.Subscribers,
		subscriptions: cfg.Subscriptions,
		catalog:       cfg.Catalog,
		emitter:       cfg.Emitter,
		logger:        cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and dispatches one Stripe webhook delivery.
// Signature failures return shared.ErrInvalidSignature so the transport
// layer can answer 400 rather than 500.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn("Rejected webhook with bad signature", zap.Error(err))
		return nil, fmt.Errorf("verify webhook signature: %w", shared.ErrInvalidSignature)
	}

	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		err = s.handleInvoicePaymentFailed(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	if err != nil {
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}
	return result, nil
}

// handleCheckoutCompleted links the new Stripe customer and subscription to
// the subscriber who completed checkout
func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	if session.Mode != stripe.CheckoutSessionModeSubscription {
		return nil
	}

	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	if email == "" {
		s.logger.Warn("Checkout session has no customer email, skipping",
			zap.String("session_id", session.ID))
		return nil
	}

	subscriber, err := s.subscribers.FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		subscriber, err = billing.NewSubscriber(email, "")
		if err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("find subscriber by email: %w", err)
	}

	if session.Customer != nil {
		subscriber.StripeCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		subscriber.StripeSubscriptionID = session.Subscription.ID
	}
	subscriber.Touch()
	if err := s.subscribers.Save(ctx, subscriber); err != nil {
		return fmt.Errorf("save subscriber: %w", err)
	}

	s.logger.Info("Linked checkout to subscriber",
		zap.String("subscriber_id", subscriber.ID.String()),
		zap.String("session_id", session.ID))
	return nil
}

// handleSubscriptionUpdated applies the subscription object carried by the
// event to both the subscriber and the subscription record
func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Subscription has no customer ID, skipping",
			zap.String("subscription_id", sub.ID))
		return nil
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	status := mapStripeStatus(sub.Status)

	subscriber, err := s.subscribers.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Checkout linking has not landed yet; Stripe will retry
			return fmt.Errorf("no subscriber for customer %s yet", customerID)
		}
		return fmt.Errorf("find subscriber by customer: %w", err)
	}

	hadSubscription := subscriber.HasActiveSubscription()
	if err := subscriber.ApplySubscription(customerID, sub.ID, priceID, status); err != nil {
		return err
	}
	if err := s.subscribers.Save(ctx, subscriber); err != nil {
		return fmt.Errorf("save subscriber: %w", err)
	}

	if err := s.upsertSubscriptionRecord(ctx, subscriber, &sub, priceID, status); err != nil {
		return err
	}

	if !hadSubscription && subscriber.HasActiveSubscription() {
		tier := s.catalog.Resolve(priceID, status)
		s.emit(ctx, job.Event{
			Name: jobs.EventSubscriptionCreated,
			Data: map[string]any{
				"subscriberId": subscriber.ID.String(),
				"tier":         tier.Name,
			},
		})
	}
	if status == billing.SubscriptionStatusTrialing && sub.TrialEnd > 0 {
		s.emit(ctx, job.Event{
			Name: jobs.EventTrialEnding,
			Data: map[string]any{
				"subscriberId": subscriber.ID.String(),
				"trialEnd":     time.Unix(sub.TrialEnd, 0).UTC().Format(time.RFC3339),
			},
		})
	}
	return nil
}

// handleSubscriptionDeleted drops the subscriber back to the free tier
func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	subscriber, err := s.subscribers.FindByStripeSubscriptionID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Already unlinked; deletion is idempotent
			return nil
		}
		return fmt.Errorf("find subscriber by subscription: %w", err)
	}

	subscriber.MarkCanceled()
	if err := s.subscribers.Save(ctx, subscriber); err != nil {
		return fmt.Errorf("save subscriber: %w", err)
	}

	record, err := s.subscriptions.FindByStripeSubscriptionID(ctx, sub.ID)
	if err == nil {
		record.MarkCanceled()
		if err := s.subscriptions.Save(ctx, record); err != nil {
			return fmt.Errorf("save subscription record: %w", err)
		}
	} else if !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("find subscription record: %w", err)
	}

	s.logger.Info("Subscription canceled",
		zap.String("subscriber_id", subscriber.ID.String()),
		zap.String("subscription_id", sub.ID))
	return nil
}

// handleInvoicePaymentFailed hands the failure to the dunning workflow
func (s *WebhookService) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	customerID := ""
	if inv.Customer != nil {
		customerID = inv.Customer.ID
	}
	if customerID == "" {
		return nil
	}

	subscriber, err := s.subscribers.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find subscriber by customer: %w", err)
	}

	s.emit(ctx, job.Event{
		Name: jobs.EventPaymentFailed,
		Data: map[string]any{
			"subscriberId": subscriber.ID.String(),
			"attempt":      inv.AttemptCount,
			"invoiceId":    inv.ID,
		},
	})
	return nil
}

// upsertSubscriptionRecord keeps the detailed subscription row current
func (s *WebhookService) upsertSubscriptionRecord(ctx context.Context, subscriber *billing.Subscriber, sub *stripe.Subscription, priceID string, status billing.SubscriptionStatus) error {
	var trialEnd *time.Time
	if sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0).UTC()
		trialEnd = &t
	}
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()

	record, err := s.subscriptions.FindByStripeSubscriptionID(ctx, sub.ID)
	if errors.Is(err, shared.ErrNotFound) {
		record, err = billing.NewSubscription(subscriber.ID, sub.ID, subscriber.StripeCustomerID, priceID, status, periodEnd)
		if err != nil {
			return err
		}
		record.TrialEnd = trialEnd
		record.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		return s.subscriptions.Save(ctx, record)
	}
	if err != nil {
		return fmt.Errorf("find subscription record: %w", err)
	}

	record.ApplyUpdate(priceID, status, periodEnd, trialEnd, sub.CancelAtPeriodEnd)
	return s.subscriptions.Save(ctx, record)
}

// emit logs and swallows emit failures: webhook handling must not bounce a
// delivery because a side-channel notification could not be queued
func (s *WebhookService) emit(ctx context.Context, event job.Event) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit workflow event",
			zap.String("event", event.Name),
			zap.Error(err))
	}
}

// mapStripeStatus converts a Stripe subscription status to the local enum
func mapStripeStatus(status stripe.SubscriptionStatus) billing.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return billing.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return billing.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return billing.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return billing.SubscriptionStatusCanceled
	default:
		return billing.SubscriptionStatusNone
	}
}

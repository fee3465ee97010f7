package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/shared"
)

// Subscription mirrors one payment-processor subscription for a subscriber.
// Rows are never hard-deleted; a subscriber may accumulate historical rows
// keyed by the external subscription id.
type Subscription struct {
	shared.BaseEntity
	SubscriberID         uuid.UUID
	StripeSubscriptionID string
	StripeCustomerID     string
	StripePriceID        string
	Status               SubscriptionStatus
	CurrentPeriodEnd     time.Time
	TrialEnd             *time.Time
	CancelAtPeriodEnd    bool
}

// NewSubscription creates a subscription record from a checkout event
func NewSubscription(subscriberID uuid.UUID, stripeSubscriptionID, stripeCustomerID, stripePriceID string, status SubscriptionStatus, currentPeriodEnd time.Time) (*Subscription, error) {
	if subscriberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIBER", "Subscriber ID cannot be empty")
	}
	if stripeSubscriptionID == "" {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "External subscription ID cannot be empty")
	}
	return &Subscription{
		BaseEntity:           shared.NewBaseEntity(),
		SubscriberID:         subscriberID,
		StripeSubscriptionID: stripeSubscriptionID,
		StripeCustomerID:     stripeCustomerID,
		StripePriceID:        stripePriceID,
		Status:               status,
		CurrentPeriodEnd:     currentPeriodEnd,
	}, nil
}

// ApplyUpdate applies a lifecycle update from the payment processor.
// The operation is idempotent: applying the same payload twice yields the
// same final state.
func (s *Subscription) ApplyUpdate(priceID string, status SubscriptionStatus, currentPeriodEnd time.Time, trialEnd *time.Time, cancelAtPeriodEnd bool) {
	if priceID != "" {
		s.StripePriceID = priceID
	}
	if status.IsValid() {
		s.Status = status
	}
	if !currentPeriodEnd.IsZero() {
		s.CurrentPeriodEnd = currentPeriodEnd
	}
	s.TrialEnd = trialEnd
	s.CancelAtPeriodEnd = cancelAtPeriodEnd
	s.Touch()
}

// MarkCanceled terminates the subscription record
func (s *Subscription) MarkCanceled() {
	s.Status = SubscriptionStatusCanceled
	s.Touch()
}

// IsTrialing returns true while the subscription is inside its trial window
func (s *Subscription) IsTrialing(now time.Time) bool {
	return s.TrialEnd != nil && now.Before(*s.TrialEnd)
}

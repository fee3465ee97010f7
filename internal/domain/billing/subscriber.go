package billing

import (
	"github.com/saasforge/backend/internal/domain/shared"
)

// SubscriptionStatus represents the lifecycle state of a subscriber's subscription
type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCanceling SubscriptionStatus = "canceling"
	SubscriptionStatusCanceled  SubscriptionStatus = "canceled"
)

// IsValid returns true if the status is a recognized lifecycle state
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusNone, SubscriptionStatusTrialing, SubscriptionStatusActive,
		SubscriptionStatusPastDue, SubscriptionStatusCanceling, SubscriptionStatusCanceled:
		return true
	}
	return false
}

// Subscriber is a tenant identity that owns a subscription and API usage.
// Subscription fields are mutated only by the webhook sync service; every
// other component reads them.
type Subscriber struct {
	shared.BaseEntity
	Email                string
	Name                 string
	StripeCustomerID     string
	StripeSubscriptionID string
	SubscriptionStatus   SubscriptionStatus
	PriceID              string
}

// NewSubscriber creates a subscriber with no subscription
func NewSubscriber(email, name string) (*Subscriber, error) {
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	return &Subscriber{
		BaseEntity:         shared.NewBaseEntity(),
		Email:              email,
		Name:               name,
		SubscriptionStatus: SubscriptionStatusNone,
	}, nil
}

// ApplySubscription updates the subscriber's billing linkage from a
// payment-processor subscription. Applying the same values twice is a no-op.
func (s *Subscriber) ApplySubscription(customerID, subscriptionID, priceID string, status SubscriptionStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown subscription status: "+string(status))
	}
	if customerID != "" {
		s.StripeCustomerID = customerID
	}
	s.StripeSubscriptionID = subscriptionID
	s.PriceID = priceID
	s.SubscriptionStatus = status
	s.Touch()
	return nil
}

// MarkCanceled transitions the subscriber to the canceled state
func (s *Subscriber) MarkCanceled() {
	s.SubscriptionStatus = SubscriptionStatusCanceled
	s.Touch()
}

// MarkPastDue transitions the subscriber to past_due after repeated payment failures
func (s *Subscriber) MarkPastDue() {
	s.SubscriptionStatus = SubscriptionStatusPastDue
	s.Touch()
}

// HasActiveSubscription returns true for statuses that grant paid-tier access
func (s *Subscriber) HasActiveSubscription() bool {
	return s.SubscriptionStatus == SubscriptionStatusActive
}

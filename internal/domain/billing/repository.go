package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriberRepository persists subscribers
type SubscriberRepository interface {
	Save(ctx context.Context, subscriber *Subscriber) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscriber, error)
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*Subscriber, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*Subscriber, error)
	// FindAll returns every subscriber, optionally filtered by status.
	// A nil filter returns all statuses.
	FindAll(ctx context.Context, status *SubscriptionStatus) ([]*Subscriber, error)
}

// SubscriptionRepository persists subscription records
type SubscriptionRepository interface {
	Save(ctx context.Context, subscription *Subscription) error
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error)
	FindCurrentBySubscriber(ctx context.Context, subscriberID uuid.UUID) (*Subscription, error)
	// FindTrialsEndingBefore returns subscriptions whose trial ends before
	// the cutoff and has not yet ended.
	FindTrialsEndingBefore(ctx context.Context, cutoff time.Time) ([]*Subscription, error)
}

// UsageEventRepository persists the append-only usage ledger
type UsageEventRepository interface {
	Save(ctx context.Context, event *UsageEvent) error
	SaveBatch(ctx context.Context, events []*UsageEvent) error
	CountBySubscriber(ctx context.Context, subscriberID uuid.UUID, period Period) (int64, error)
	FindBySubscriber(ctx context.Context, subscriberID uuid.UUID, period Period, limit int) ([]*UsageEvent, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// BillingActionRepository persists the reconciliation idempotency ledger
type BillingActionRepository interface {
	// Save persists an action. Returns shared.ErrAlreadyExists when an
	// action for the same (subscriber, period) is already recorded.
	Save(ctx context.Context, action *BillingAction) error
	// Update persists changes to an already-saved action
	Update(ctx context.Context, action *BillingAction) error
	FindBySubscriberAndPeriod(ctx context.Context, subscriberID uuid.UUID, periodStart time.Time) (*BillingAction, error)
	FindByPeriod(ctx context.Context, periodStart time.Time) ([]*BillingAction, error)
}

// InvoiceItemInput describes one overage line item for the payment processor
type InvoiceItemInput struct {
	CustomerID  string
	AmountCents int64
	Currency    string
	Description string
}

// InvoiceInput describes an invoice collecting pending line items
type InvoiceInput struct {
	CustomerID  string
	Description string
	AutoAdvance bool
}

// Invoicer creates overage charges with the external payment processor
type Invoicer interface {
	CreateInvoiceItem(ctx context.Context, input InvoiceItemInput) (itemID string, err error)
	CreateInvoice(ctx context.Context, input InvoiceInput) (invoiceID string, err error)
}

// AlertMarker deduplicates threshold alerts within a billing period.
// MarkSent returns true if the marker was newly set, false if an alert for
// the same key was already sent.
type AlertMarker interface {
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

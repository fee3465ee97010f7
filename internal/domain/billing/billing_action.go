package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BillingAction is the idempotency ledger for reconciliation runs: one row
// per (subscriber, period start). The unique constraint on that pair is what
// makes re-triggering the monthly job for an already-billed period a no-op
// instead of a double invoice.
type BillingAction struct {
	shared.BaseEntity
	SubscriberID    uuid.UUID
	PeriodStart     time.Time
	PeriodLabel     string
	TotalCalls      int64
	OverageUnits    int64
	Charge          decimal.Decimal
	StripeInvoiceID string
}

// NewBillingAction records the outcome of billing one subscriber for one period
func NewBillingAction(subscriberID uuid.UUID, period Period, totalCalls, overageUnits int64, charge decimal.Decimal) (*BillingAction, error) {
	if subscriberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIBER", "Subscriber ID cannot be empty")
	}
	return &BillingAction{
		BaseEntity:   shared.NewBaseEntity(),
		SubscriberID: subscriberID,
		PeriodStart:  period.Start,
		PeriodLabel:  period.Label(),
		TotalCalls:   totalCalls,
		OverageUnits: overageUnits,
		Charge:       charge,
	}, nil
}

// AttachInvoice links the created processor invoice to the action
func (a *BillingAction) AttachInvoice(invoiceID string) {
	a.StripeInvoiceID = invoiceID
	a.Touch()
}

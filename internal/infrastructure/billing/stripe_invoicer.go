package billing

import (
	"context"
	"fmt"

	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/invoice"
	"github.com/stripe/stripe-go/v81/invoiceitem"
	"go.uber.org/zap"
)

// StripeInvoicer creates overage invoices in Stripe
type StripeInvoicer struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeInvoicer creates a new Stripe invoicer
func NewStripeInvoicer(config *StripeConfig, logger *zap.Logger) (*StripeInvoicer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.InitStripeClient()
	return &StripeInvoicer{config: config, logger: logger}, nil
}

// CreateInvoiceItem adds a pending line item to the customer's next invoice
func (s *StripeInvoicer) CreateInvoiceItem(ctx context.Context, input billing.InvoiceItemInput) (string, error) {
	currency := input.Currency
	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(input.CustomerID),
		Amount:      stripe.Int64(input.AmountCents),
		Currency:    stripe.String(currency),
		Description: stripe.String(input.Description),
	}
	params.Context = ctx

	item, err := invoiceitem.New(params)
	if err != nil {
		s.logger.Error("Failed to create Stripe invoice item",
			zap.String("customer_id", input.CustomerID),
			zap.Int64("amount_cents", input.AmountCents),
			zap.Error(err))
		return "", fmt.Errorf("stripe: failed to create invoice item: %w", err)
	}

	s.logger.Info("Created Stripe invoice item",
		zap.String("customer_id", input.CustomerID),
		zap.String("item_id", item.ID),
		zap.Int64("amount_cents", input.AmountCents))
	return item.ID, nil
}

// CreateInvoice collects the customer's pending line items into an invoice.
// AutoAdvance lets Stripe finalize and attempt payment on its own schedule.
func (s *StripeInvoicer) CreateInvoice(ctx context.Context, input billing.InvoiceInput) (string, error) {
	params := &stripe.InvoiceParams{
		Customer:    stripe.String(input.CustomerID),
		Description: stripe.String(input.Description),
		AutoAdvance: stripe.Bool(input.AutoAdvance),
	}
	params.Context = ctx

	inv, err := invoice.New(params)
	if err != nil {
		s.logger.Error("Failed to create Stripe invoice",
			zap.String("customer_id", input.CustomerID),
			zap.Error(err))
		return "", fmt.Errorf("stripe: failed to create invoice: %w", err)
	}

	s.logger.Info("Created Stripe invoice",
		zap.String("customer_id", input.CustomerID),
		zap.String("invoice_id", inv.ID))
	return inv.ID, nil
}

var _ billing.Invoicer = (*StripeInvoicer)(nil)

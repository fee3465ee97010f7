package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result statuses for one subscriber within a reconciliation run
const (
	ResultBilled      = "billed"
	ResultWithinLimit = "within_limit"
	ResultSkipped     = "skipped"
	ResultError       = "error"
)

// defaultParallelism bounds concurrent per-subscriber work during a run
const defaultParallelism = 8

// SubscriberResult is the outcome of reconciling one subscriber
type SubscriberResult struct {
	SubscriberID uuid.UUID       `json:"subscriberId"`
	Email        string          `json:"email"`
	Tier         string          `json:"tier"`
	TotalCalls   int64           `json:"totalCalls"`
	Limit        int64           `json:"limit"`
	OverageUnits int64           `json:"overageUnits"`
	Charge       decimal.Decimal `json:"charge"`
	Status       string          `json:"status"`
	InvoiceID    string          `json:"invoiceId,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ReconciliationSummary aggregates a run's results
type ReconciliationSummary struct {
	Total        int             `json:"total"`
	Billed       int             `json:"billed"`
	WithinLimit  int             `json:"withinLimit"`
	Errors       int             `json:"errors"`
	TotalCharges decimal.Decimal `json:"totalCharges"`
}

// ReconciliationReport is the full outcome of one reconciliation run
type ReconciliationReport struct {
	Period  string                `json:"period"`
	Results []SubscriberResult    `json:"results"`
	Summary ReconciliationSummary `json:"summary"`
}

// ReconciliationService bills the previous month's overage for every active
// subscriber. Runs are idempotent per (subscriber, period): a re-run never
// produces a second charge.
type ReconciliationService struct {
	subscribers billing.SubscriberRepository
	usage       billing.UsageEventRepository
	actions     billing.BillingActionRepository
	invoicer    billing.Invoicer
	catalog     *billing.Catalog
	logger      *zap.Logger
	parallelism int
	now         func() time.Time
}

// NewReconciliationService creates a reconciliation service
func NewReconciliationService(
	subscribers billing.SubscriberRepository,
	usage billing.UsageEventRepository,
	actions billing.BillingActionRepository,
	invoicer billing.Invoicer,
	catalog *billing.Catalog,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		subscribers: subscribers,
		usage:       usage,
		actions:     actions,
		invoicer:    invoicer,
		catalog:     catalog,
		logger:      logger,
		parallelism: defaultParallelism,
		now:         time.Now,
	}
}

// Run reconciles the previous calendar month for all active subscribers.
// Per-subscriber failures are isolated: one bad account never aborts the
// run, it shows up as an error entry in the report instead.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	period := billing.PreviousMonth(s.now())

	active := billing.SubscriptionStatusActive
	subscribers, err := s.subscribers.FindAll(ctx, &active)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}

	s.logger.Info("starting billing reconciliation",
		zap.String("period", period.Label()),
		zap.Int("subscribers", len(subscribers)))

	var mu sync.Mutex
	results := make([]SubscriberResult, 0, len(subscribers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, subscriber := range subscribers {
		subscriber := subscriber
		g.Go(func() error {
			result := s.reconcileSubscriber(gctx, subscriber, period)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		Period:  period.Label(),
		Results: results,
		Summary: summarize(results),
	}

	s.logger.Info("billing reconciliation finished",
		zap.String("period", report.Period),
		zap.Int("total", report.Summary.Total),
		zap.Int("billed", report.Summary.Billed),
		zap.Int("within_limit", report.Summary.WithinLimit),
		zap.Int("errors", report.Summary.Errors),
		zap.String("total_charges", report.Summary.TotalCharges.String()))
	return report, nil
}

// reconcileSubscriber computes and, if needed, bills one subscriber's
// overage for the period
func (s *ReconciliationService) reconcileSubscriber(ctx context.Context, subscriber *billing.Subscriber, period billing.Period) SubscriberResult {
	result := SubscriberResult{
		SubscriberID: subscriber.ID,
		Email:        subscriber.Email,
		Charge:       decimal.Zero,
	}

	tier := s.catalog.Resolve(subscriber.PriceID, subscriber.SubscriptionStatus)
	result.Tier = string(tier.ID)
	result.Limit = tier.APICallLimit

	if tier.CustomBilled || tier.APICallLimit == billing.UnlimitedCalls {
		// Enterprise accounts are invoiced outside this pipeline and
		// never carry overage here
		result.Status = ResultWithinLimit
		return result
	}

	totalCalls, err := s.usage.CountBySubscriber(ctx, subscriber.ID, period)
	if err != nil {
		s.logger.Error("failed to count usage",
			zap.String("subscriber_id", subscriber.ID.String()),
			zap.Error(err))
		result.Status = ResultError
		result.Error = err.Error()
		return result
	}
	result.TotalCalls = totalCalls

	overage := billing.CalculateOverage(tier, totalCalls)
	if overage == 0 {
		result.Status = ResultWithinLimit
		return result
	}
	result.OverageUnits = overage
	charge := billing.CalculateOverageCharge(tier, totalCalls)
	result.Charge = charge

	// Without a payment processor the overage cannot be collected. The
	// ledger stays untouched so a later run can still bill this period.
	if s.invoicer == nil {
		s.logger.Warn("overage found but invoicing is disabled",
			zap.String("subscriber_id", subscriber.ID.String()),
			zap.String("period", period.Label()),
			zap.String("charge", charge.String()))
		result.Status = ResultError
		result.Error = "no payment processor configured"
		return result
	}

	// Insert the ledger row before touching the payment processor so a
	// re-run of an already-billed period stops here.
	action, err := billing.NewBillingAction(subscriber.ID, period, totalCalls, overage, charge)
	if err != nil {
		result.Status = ResultError
		result.Error = err.Error()
		return result
	}
	if err := s.actions.Save(ctx, action); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Info("period already billed, skipping",
				zap.String("subscriber_id", subscriber.ID.String()),
				zap.String("period", period.Label()))
			result.Status = ResultSkipped
			result.Charge = decimal.Zero
			result.OverageUnits = 0
			return result
		}
		result.Status = ResultError
		result.Error = err.Error()
		return result
	}

	invoiceID, err := s.createInvoice(ctx, subscriber, tier, overage, charge, period)
	if err != nil {
		s.logger.Error("failed to invoice overage",
			zap.String("subscriber_id", subscriber.ID.String()),
			zap.String("period", period.Label()),
			zap.Error(err))
		result.Status = ResultError
		result.Error = err.Error()
		return result
	}

	action.AttachInvoice(invoiceID)
	if err := s.actions.Update(ctx, action); err != nil {
		s.logger.Error("failed to record invoice id",
			zap.String("subscriber_id", subscriber.ID.String()),
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
	}

	result.Status = ResultBilled
	result.InvoiceID = invoiceID
	return result
}

// createInvoice creates the overage line item and collects it into an invoice
func (s *ReconciliationService) createInvoice(ctx context.Context, subscriber *billing.Subscriber, tier billing.Tier, overage int64, charge decimal.Decimal, period billing.Period) (string, error) {
	if subscriber.StripeCustomerID == "" {
		return "", fmt.Errorf("subscriber has no payment processor customer")
	}

	description := fmt.Sprintf("API overage for %s: %d calls beyond the %d included in the %s plan",
		period.Label(), overage, tier.APICallLimit, tier.Name)

	if _, err := s.invoicer.CreateInvoiceItem(ctx, billing.InvoiceItemInput{
		CustomerID:  subscriber.StripeCustomerID,
		AmountCents: charge.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:    "usd",
		Description: description,
	}); err != nil {
		return "", err
	}

	return s.invoicer.CreateInvoice(ctx, billing.InvoiceInput{
		CustomerID:  subscriber.StripeCustomerID,
		Description: fmt.Sprintf("Usage overage, %s", period.Label()),
		AutoAdvance: true,
	})
}

func summarize(results []SubscriberResult) ReconciliationSummary {
	summary := ReconciliationSummary{Total: len(results), TotalCharges: decimal.Zero}
	for _, r := range results {
		switch r.Status {
		case ResultBilled:
			summary.Billed++
			summary.TotalCharges = summary.TotalCharges.Add(r.Charge)
		case ResultError:
			summary.Errors++
		default:
			summary.WithinLimit++
		}
	}
	return summary
}

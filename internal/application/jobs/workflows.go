package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/job"
	"github.com/saasforge/backend/internal/domain/notification"
	"go.uber.org/zap"
)

// Event names shared between emitters and workflows
const (
	EventSubscriptionCreated = "user.subscription.created"
	EventUsageWarning        = "user.usage.limit.warning"
	EventUsageExceeded       = "user.usage.limit.exceeded"
	EventTrialEnding         = "user.trial.ending"
	EventPaymentFailed       = "user.payment.failed"
	EventFileUploaded        = "storage.file.uploaded"
)

// Payment failure attempts tolerated before the account is marked past due
const pastDueAttemptThreshold = 3

// fileProcessingConcurrency caps simultaneous file workflow runs so a bulk
// upload cannot starve the rest of the engine
const fileProcessingConcurrency = 5

// WorkflowDeps carries the collaborators the built-in workflows need
type WorkflowDeps struct {
	Subscribers billing.SubscriberRepository
	Sender      notification.Sender
	Engine      *Engine
	Store       ObjectStore
	Logger      *zap.Logger
}

// RegisterWorkflows registers every built-in workflow on the engine
func RegisterWorkflows(engine *Engine, deps WorkflowDeps) {
	engine.Register(Workflow{
		Name:    EventSubscriptionCreated,
		Handler: subscriptionCreatedHandler(deps),
	})
	engine.Register(Workflow{
		Name:    EventUsageWarning,
		Handler: usageWarningHandler(deps),
	})
	engine.Register(Workflow{
		Name:    EventUsageExceeded,
		Handler: usageExceededHandler(deps),
	})
	engine.Register(Workflow{
		Name:    EventTrialEnding,
		Handler: trialEndingHandler(deps),
	})
	engine.Register(Workflow{
		Name:    EventPaymentFailed,
		Handler: paymentFailedHandler(deps),
	})
	engine.Register(Workflow{
		Name:           EventFileUploaded,
		MaxConcurrency: fileProcessingConcurrency,
		Handler:        fileUploadedHandler(deps),
	})
}

// subscriptionCreatedHandler welcomes a subscriber onto their new plan
func subscriptionCreatedHandler(deps WorkflowDeps) Handler {
	return func(sc *StepContext, event job.Event) error {
		subscriber, err := loadSubscriber(sc.Context(), deps.Subscribers, event)
		if err != nil {
			return err
		}
		tierName := stringField(event, "tier")

		_, err = sc.Step("send-welcome-email", func(ctx context.Context) ([]byte, error) {
			body := fmt.Sprintf(
				"Hi %s,\n\nYour %s subscription is now active. You can manage your plan and API keys from your dashboard.\n\nThanks for subscribing!\n",
				displayName(subscriber), tierName)
			return nil, deps.Sender.Send(ctx, notification.Email{
				To:      subscriber.Email,
				Subject: "Welcome to your new plan",
				Body:    body,
			})
		})
		return err
	}
}

// usageWarningHandler notifies a subscriber approaching their monthly limit
func usageWarningHandler(deps WorkflowDeps) Handler {
	return func(sc *StepContext, event job.Event) error {
		subscriber, err := loadSubscriber(sc.Context(), deps.Subscribers, event)
		if err != nil {
			return err
		}
		percent := intField(event, "percent")
		used := intField(event, "used")
		limit := intField(event, "limit")

		_, err = sc.Step("send-warning-email", func(ctx context.Context) ([]byte, error) {
			body := fmt.Sprintf(
				"Hi %s,\n\nYou have used %d of your %d included API calls this month (%d%%).\nCalls beyond your plan limit are billed as overage at the end of the period.\n\nConsider upgrading if you expect sustained growth.\n",
				displayName(subscriber), used, limit, percent)
			return nil, deps.Sender.Send(ctx, notification.Email{
				To:      subscriber.Email,
				Subject: fmt.Sprintf("You've used %d%% of your monthly API calls", percent),
				Body:    body,
			})
		})
		return err
	}
}

// usageExceededHandler notifies a subscriber who crossed their monthly limit
func usageExceededHandler(deps WorkflowDeps) Handler {
	return func(sc *StepContext, event job.Event) error {
		subscriber, err := loadSubscriber(sc.Context(), deps.Subscribers, event)
		if err != nil {
			return err
		}
		used := intField(event, "used")
		limit := intField(event, "limit")

		_, err = sc.Step("send-exceeded-email", func(ctx context.Context) ([]byte, error) {
			body := fmt.Sprintf(
				"Hi %s,\n\nYou have used %d API calls this month, which exceeds the %d calls included in your plan.\nYour service continues uninterrupted; additional calls are billed as overage on your next invoice.\n",
				displayName(subscriber), used, limit)
			return nil, deps.Sender.Send(ctx, notification.Email{
				To:      subscriber.Email,
				Subject: "Monthly API call limit exceeded",
				Body:    body,
			})
		})
		return err
	}
}

// trialEndingHandler reminds a subscriber one day before their trial ends.
// Fired when the trial starts; if the end is still more than a day out it
// re-emits itself for tomorrow instead of sleeping in-process.
func trialEndingHandler(deps WorkflowDeps) Handler {
	return func(sc *StepContext, event job.Event) error {
		subscriber, err := loadSubscriber(sc.Context(), deps.Subscribers, event)
		if err != nil {
			return err
		}

		trialEnd := timeField(event, "trialEnd")
		if trialEnd.IsZero() {
			return fmt.Errorf("trial end missing from event")
		}
		if time.Now().After(trialEnd) {
			// Trial already over, reminder is moot
			return nil
		}

		if time.Until(trialEnd) > 24*time.Hour {
			_, err = sc.Step("reschedule", func(ctx context.Context) ([]byte, error) {
				return nil, deps.Engine.Emit(ctx, job.Event{
					Name: EventTrialEnding,
					Data: event.Data,
					TS:   time.Now().Add(24 * time.Hour),
				})
			})
			return err
		}

		_, err = sc.Step("send-trial-reminder", func(ctx context.Context) ([]byte, error) {
			body := fmt.Sprintf(
				"Hi %s,\n\nYour trial ends on %s. Add a payment method before then to keep your current plan without interruption.\n",
				displayName(subscriber), trialEnd.Format("January 2, 2006"))
			return nil, deps.Sender.Send(ctx, notification.Email{
				To:      subscriber.Email,
				Subject: "Your trial ends tomorrow",
				Body:    body,
			})
		})
		return err
	}
}

// paymentFailedHandler nudges the subscriber after a failed charge and marks
// the account past due once the processor has given up retrying
func paymentFailedHandler(deps WorkflowDeps) Handler {
	return func(sc *StepContext, event job.Event) error {
		subscriber, err := loadSubscriber(sc.Context(), deps.Subscribers, event)
		if err != nil {
			return err
		}
		attempt := intField(event, "attempt")

		if attempt >= pastDueAttemptThreshold {
			_, err = sc.Step("mark-past-due", func(ctx context.Context) ([]byte, error) {
				subscriber.MarkPastDue()
				return nil, deps.Subscribers.Save(ctx, subscriber)
			})
			if err != nil {
				return err
			}
			_, err = sc.Step("send-final-notice", func(ctx context.Context) ([]byte, error) {
				body := fmt.Sprintf(
					"Hi %s,\n\nWe were unable to collect payment after %d attempts and your account is now past due.\nPlease update your payment method to restore your plan.\n",
					displayName(subscriber), attempt)
				return nil, deps.Sender.Send(ctx, notification.Email{
					To:      subscriber.Email,
					Subject: "Action required: your account is past due",
					Body:    body,
				})
			})
			return err
		}

		_, err = sc.Step("send-retry-notice", func(ctx context.Context) ([]byte, error) {
			body := fmt.Sprintf(
				"Hi %s,\n\nYour latest payment attempt failed (attempt %d). We will retry automatically; no action is needed if your payment method is current.\n",
				displayName(subscriber), attempt)
			return nil, deps.Sender.Send(ctx, notification.Email{
				To:      subscriber.Email,
				Subject: "Payment attempt failed",
				Body:    body,
			})
		})
		return err
	}
}

// fileUploadedHandler processes an uploaded file: fetch, digest, store a
// processing receipt next to the original
func fileUploadedHandler(deps WorkflowDeps) Handler {
	return func(sc *StepContext, event job.Event) error {
		if deps.Store == nil {
			return fmt.Errorf("object storage not configured")
		}
		key := stringField(event, "key")
		if key == "" {
			return fmt.Errorf("object key missing from event")
		}

		var digest string
		err := sc.StepJSON("digest-file", &digest, func(ctx context.Context) (any, error) {
			data, err := deps.Store.Fetch(ctx, key)
			if err != nil {
				return nil, err
			}
			sum := sha256.Sum256(data)
			return hex.EncodeToString(sum[:]), nil
		})
		if err != nil {
			return err
		}

		_, err = sc.Step("store-receipt", func(ctx context.Context) ([]byte, error) {
			receipt := fmt.Sprintf("{\"key\":%q,\"sha256\":%q,\"processedAt\":%q}",
				key, digest, time.Now().UTC().Format(time.RFC3339))
			return nil, deps.Store.Store(ctx, key+".receipt.json", []byte(receipt), "application/json")
		})
		return err
	}
}

// loadSubscriber resolves the subscriber referenced by the event payload
func loadSubscriber(ctx context.Context, repo billing.SubscriberRepository, event job.Event) (*billing.Subscriber, error) {
	raw := stringField(event, "subscriberId")
	if raw == "" {
		return nil, fmt.Errorf("subscriber id missing from event")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid subscriber id %q: %w", raw, err)
	}
	subscriber, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subscriber %s: %w", id, err)
	}
	return subscriber, nil
}

func displayName(s *billing.Subscriber) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

func stringField(event job.Event, key string) string {
	if v, ok := event.Data[key].(string); ok {
		return v
	}
	return ""
}

// intField tolerates the float64 that JSON decoding produces
func intField(event job.Event, key string) int {
	switch v := event.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func timeField(event job.Event, key string) time.Time {
	if v, ok := event.Data[key].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

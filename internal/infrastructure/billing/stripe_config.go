package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds configuration for Stripe integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret is the secret for verifying webhook signatures
	WebhookSecret string

	// DefaultCurrency is the currency for overage invoices
	DefaultCurrency string
}

// NewStripeConfig creates a config with the usd default currency
func NewStripeConfig(secretKey, webhookSecret string) *StripeConfig {
	return &StripeConfig{
		SecretKey:       secretKey,
		WebhookSecret:   webhookSecret,
		DefaultCurrency: "usd",
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") {
		return fmt.Errorf("stripe: secret key must start with sk_")
	}
	if c.DefaultCurrency == "" {
		return fmt.Errorf("stripe: default currency is required")
	}
	return nil
}

// InitStripeClient sets the package-level API key for the Stripe SDK
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}

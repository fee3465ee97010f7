package billing

import (
	"github.com/shopspring/decimal"
)

// UnlimitedCalls is the sentinel allowance for tiers without a monthly cap
const UnlimitedCalls int64 = -1

// TierID identifies a service level
type TierID string

const (
	TierFree         TierID = "free"
	TierStarter      TierID = "starter"
	TierProfessional TierID = "professional"
	TierEnterprise   TierID = "enterprise"
)

// Tier is a static service-level definition. The catalog is loaded once at
// startup and is immutable at runtime.
type Tier struct {
	ID                 TierID
	Name               string
	APICallLimit       int64 // monthly allowance, UnlimitedCalls for no cap
	OverageUnitPrice   decimal.Decimal
	MonthlyPriceID     string
	AnnualPriceID      string
	RateLimitPerMinute int
	TrialDays          int
	// CustomBilled tiers are contractually invoiced and excluded from
	// automated overage billing.
	CustomBilled bool
}

// IsUnlimited returns true if the tier has no monthly call allowance
func (t Tier) IsUnlimited() bool {
	return t.APICallLimit == UnlimitedCalls
}

// Matches reports whether the given price id belongs to this tier
func (t Tier) Matches(priceID string) bool {
	if priceID == "" {
		return false
	}
	return priceID == t.MonthlyPriceID || priceID == t.AnnualPriceID
}

// Catalog holds the ordered tier definitions, lowest tier first
type Catalog struct {
	tiers []Tier
}

// NewCatalog builds a catalog from tier definitions. The first tier is the
// fallback for subscribers without an active subscription.
func NewCatalog(tiers []Tier) *Catalog {
	return &Catalog{tiers: tiers}
}

// DefaultCatalog returns the built-in tier definitions. Price ids are
// placeholders overridden from configuration.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Tier{
		{
			ID:                 TierFree,
			Name:               "Free",
			APICallLimit:       100,
			OverageUnitPrice:   decimal.NewFromFloat(0.02),
			RateLimitPerMinute: 10,
		},
		{
			ID:                 TierStarter,
			Name:               "Starter",
			APICallLimit:       1000,
			OverageUnitPrice:   decimal.NewFromFloat(0.01),
			MonthlyPriceID:     "price_starter_monthly",
			AnnualPriceID:      "price_starter_yearly",
			RateLimitPerMinute: 100,
			TrialDays:          14,
		},
		{
			ID:                 TierProfessional,
			Name:               "Professional",
			APICallLimit:       50000,
			OverageUnitPrice:   decimal.NewFromFloat(0.005),
			MonthlyPriceID:     "price_pro_monthly",
			AnnualPriceID:      "price_pro_yearly",
			RateLimitPerMinute: 1000,
			TrialDays:          14,
		},
		{
			ID:                 TierEnterprise,
			Name:               "Enterprise",
			APICallLimit:       UnlimitedCalls,
			OverageUnitPrice:   decimal.Zero,
			MonthlyPriceID:     "price_ent_monthly",
			AnnualPriceID:      "price_ent_yearly",
			RateLimitPerMinute: 10000,
			TrialDays:          30,
			CustomBilled:       true,
		},
	})
}

// Free returns the lowest tier
func (c *Catalog) Free() Tier {
	return c.tiers[0]
}

// All returns the tier definitions in ascending order
func (c *Catalog) All() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// ByID looks up a tier by its id
func (c *Catalog) ByID(id TierID) (Tier, bool) {
	for _, t := range c.tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// Resolve maps a subscriber's current price id and status to a tier
// definition. It is a pure function of its inputs: non-active status or an
// unknown price id resolves to the free tier.
func (c *Catalog) Resolve(priceID string, status SubscriptionStatus) Tier {
	if status != SubscriptionStatusActive {
		return c.Free()
	}
	for _, t := range c.tiers {
		if t.Matches(priceID) {
			return t
		}
	}
	return c.Free()
}

// PromoteForLimiting returns the next tier up from the given one, used when
// a feature entitlement grants a higher rate-limit ceiling. Promotion only
// affects limiting, never billing allowance.
func (c *Catalog) PromoteForLimiting(tier Tier) Tier {
	for i, t := range c.tiers {
		if t.ID == tier.ID && i+1 < len(c.tiers) {
			return c.tiers[i+1]
		}
	}
	return tier
}

// OverridePriceIDs replaces the catalog's placeholder price ids with the
// configured mapping (tier id -> monthly/annual price ids).
func (c *Catalog) OverridePriceIDs(monthly, annual map[string]string) {
	for i := range c.tiers {
		if id, ok := monthly[string(c.tiers[i].ID)]; ok && id != "" {
			c.tiers[i].MonthlyPriceID = id
		}
		if id, ok := annual[string(c.tiers[i].ID)]; ok && id != "" {
			c.tiers[i].AnnualPriceID = id
		}
	}
}

// CalculateOverage returns the number of calls above the tier's allowance.
// It is monotonic non-decreasing in totalCalls and zero whenever totalCalls
// is within the allowance or the tier is unlimited.
func CalculateOverage(tier Tier, totalCalls int64) int64 {
	if tier.IsUnlimited() {
		return 0
	}
	overage := totalCalls - tier.APICallLimit
	if overage < 0 {
		return 0
	}
	return overage
}

// CalculateOverageCharge returns the charge for usage above the tier's
// allowance in the tier's currency units.
func CalculateOverageCharge(tier Tier, totalCalls int64) decimal.Decimal {
	overage := CalculateOverage(tier, totalCalls)
	if overage == 0 {
		return decimal.Zero
	}
	return tier.OverageUnitPrice.Mul(decimal.NewFromInt(overage))
}

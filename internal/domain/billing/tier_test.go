package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCatalogResolve(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("active subscription with known price resolves its tier", func(t *testing.T) {
		tier := catalog.Resolve("price_pro_monthly", SubscriptionStatusActive)
		assert.Equal(t, TierProfessional, tier.ID)

		tier = catalog.Resolve("price_starter_yearly", SubscriptionStatusActive)
		assert.Equal(t, TierStarter, tier.ID)
	})

	t.Run("non-active status resolves to free regardless of price", func(t *testing.T) {
		for _, status := range []SubscriptionStatus{
			SubscriptionStatusNone,
			SubscriptionStatusTrialing,
			SubscriptionStatusPastDue,
			SubscriptionStatusCanceled,
		} {
			tier := catalog.Resolve("price_pro_monthly", status)
			assert.Equal(t, TierFree, tier.ID, "status %s", status)
		}
	})

	t.Run("unknown price resolves to free", func(t *testing.T) {
		tier := catalog.Resolve("price_from_another_account", SubscriptionStatusActive)
		assert.Equal(t, TierFree, tier.ID)
	})

	t.Run("empty price resolves to free", func(t *testing.T) {
		tier := catalog.Resolve("", SubscriptionStatusActive)
		assert.Equal(t, TierFree, tier.ID)
	})
}

func TestCatalogOverridePriceIDs(t *testing.T) {
	catalog := DefaultCatalog()
	catalog.OverridePriceIDs(
		map[string]string{"professional": "price_live_pro_m"},
		map[string]string{"professional": "price_live_pro_y"},
	)

	tier := catalog.Resolve("price_live_pro_m", SubscriptionStatusActive)
	assert.Equal(t, TierProfessional, tier.ID)
	tier = catalog.Resolve("price_live_pro_y", SubscriptionStatusActive)
	assert.Equal(t, TierProfessional, tier.ID)

	// The placeholder no longer matches
	tier = catalog.Resolve("price_pro_monthly", SubscriptionStatusActive)
	assert.Equal(t, TierFree, tier.ID)
}

func TestCatalogPromoteForLimiting(t *testing.T) {
	catalog := DefaultCatalog()

	free, _ := catalog.ByID(TierFree)
	promoted := catalog.PromoteForLimiting(free)
	assert.Equal(t, TierStarter, promoted.ID)

	// The top tier promotes to itself
	enterprise, _ := catalog.ByID(TierEnterprise)
	promoted = catalog.PromoteForLimiting(enterprise)
	assert.Equal(t, TierEnterprise, promoted.ID)
}

func TestCalculateOverage(t *testing.T) {
	catalog := DefaultCatalog()
	starter, _ := catalog.ByID(TierStarter)
	enterprise, _ := catalog.ByID(TierEnterprise)

	tests := []struct {
		name       string
		tier       Tier
		totalCalls int64
		want       int64
	}{
		{"zero usage", starter, 0, 0},
		{"under limit", starter, 999, 0},
		{"exactly at limit", starter, 1000, 0},
		{"one over", starter, 1001, 1},
		{"well over", starter, 1200, 200},
		{"unlimited never has overage", enterprise, 10_000_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateOverage(tt.tier, tt.totalCalls))
		})
	}
}

func TestCalculateOverageIsMonotonic(t *testing.T) {
	catalog := DefaultCatalog()
	starter, _ := catalog.ByID(TierStarter)

	prev := int64(0)
	for calls := int64(0); calls <= 2000; calls += 50 {
		overage := CalculateOverage(starter, calls)
		assert.GreaterOrEqual(t, overage, prev)
		prev = overage
	}
}

func TestCalculateOverageCharge(t *testing.T) {
	catalog := DefaultCatalog()
	starter, _ := catalog.ByID(TierStarter)
	free, _ := catalog.ByID(TierFree)

	// 1200 calls on a 1000-call tier at $0.01/call
	charge := CalculateOverageCharge(starter, 1200)
	assert.True(t, charge.Equal(decimal.NewFromFloat(2.00)), "got %s", charge)

	// 150 calls on a 100-call tier at $0.02/call
	charge = CalculateOverageCharge(free, 150)
	assert.True(t, charge.Equal(decimal.NewFromFloat(1.00)), "got %s", charge)

	assert.True(t, CalculateOverageCharge(starter, 1000).IsZero())
}

func TestPeriods(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

	current := CurrentMonth(now)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), current.Start)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), current.End)
	assert.Equal(t, "2026-03", current.Label())

	previous := PreviousMonth(now)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), previous.Start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), previous.End)
	assert.Equal(t, "2026-02", previous.Label())

	// Half-open: start inclusive, end exclusive
	assert.True(t, previous.Contains(previous.Start))
	assert.False(t, previous.Contains(previous.End))

	// Year boundary
	january := CurrentMonth(time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-01", january.Label())
	assert.Equal(t, "2025-12", PreviousMonth(january.Start.Add(time.Hour)).Label())
}

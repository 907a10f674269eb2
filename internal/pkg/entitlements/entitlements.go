package entitlements

import (
	"strings"

	"github.com/paywise/tiersync/app/models"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierPremiumMax Tier = "premium_max"

	// TierAdmin is a manual override outside the billing relationship. The
	// reconciliation engine never assigns it and never downgrades away from it.
	TierAdmin Tier = "admin"
)

// Normalize maps an arbitrary string to a known tier, defaulting to free.
func Normalize(tier string) Tier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(TierPremium):
		return TierPremium
	case string(TierPremiumMax):
		return TierPremiumMax
	case string(TierAdmin):
		return TierAdmin
	default:
		return TierFree
	}
}

// Rank returns the fixed ordinal used for tier comparisons.
func Rank(tier Tier) int {
	switch tier {
	case TierAdmin:
		return 3
	case TierPremiumMax:
		return 2
	case TierPremium:
		return 1
	default:
		return 0
	}
}

// IsManaged reports whether reconciliation is allowed to write this tier.
// Admin accounts are exempt from processor-driven tier changes.
func IsManaged(tier Tier) bool {
	return tier != TierAdmin
}

// ResolveTier maps a subscription's status and primary price interval to the
// entitlement tier it grants. Pure and total: unrecognized input degrades to
// the free tier rather than erroring, because under-granting is safer than
// over-granting paid access.
func ResolveTier(status, interval string) Tier {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
	default:
		return TierFree
	}

	switch strings.ToLower(strings.TrimSpace(interval)) {
	case models.BillingIntervalMonth:
		return TierPremium
	case models.BillingIntervalYear:
		return TierPremiumMax
	default:
		return TierFree
	}
}

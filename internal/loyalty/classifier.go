package loyalty

import "github.com/shopspring/decimal"

// Classify maps cumulative spend to a tier. Boundaries are inclusive:
// spend exactly at a threshold qualifies for that tier. Negative spend
// is treated as zero, so the function is total over all numeric input.
func Classify(totalSpend decimal.Decimal, thresholds Thresholds) Tier {
	if totalSpend.IsNegative() {
		totalSpend = decimal.Zero
	}
	switch {
	case totalSpend.GreaterThanOrEqual(thresholds.Gold):
		return TierGold
	case totalSpend.GreaterThanOrEqual(thresholds.Silver):
		return TierSilver
	default:
		return TierBronze
	}
}

// SpendToNextTier returns the shortfall between current spend and the
// next threshold, or zero once gold is reached.
func SpendToNextTier(totalSpend decimal.Decimal, thresholds Thresholds) decimal.Decimal {
	if totalSpend.IsNegative() {
		totalSpend = decimal.Zero
	}
	switch Classify(totalSpend, thresholds) {
	case TierGold:
		return decimal.Zero
	case TierSilver:
		return thresholds.Gold.Sub(totalSpend)
	default:
		return thresholds.Silver.Sub(totalSpend)
	}
}

package tollgate

import "github.com/shopspring/decimal"

// TierResolver maps a monetary amount to an execution tier. Pure and total:
// every amount resolves to exactly one tier and boundary amounts belong to
// the higher tier.
//
// TierMaximum is never resolved from an amount; it is only reachable
// through an explicit privacy-level override on the request.
type TierResolver struct {
	// FHEThresholdUSD is the recommended-FHE floor.
	FHEThresholdUSD decimal.Decimal
	// MPCThresholdUSD is the mandatory-MPC floor. Must exceed the FHE floor.
	MPCThresholdUSD decimal.Decimal
}

// Default tier thresholds, in USD.
var (
	DefaultFHEThresholdUSD = decimal.NewFromInt(50_000)
	DefaultMPCThresholdUSD = decimal.NewFromInt(100_000)
)

// NewTierResolver creates a resolver with the default thresholds.
func NewTierResolver() *TierResolver {
	return &TierResolver{
		FHEThresholdUSD: DefaultFHEThresholdUSD,
		MPCThresholdUSD: DefaultMPCThresholdUSD,
	}
}

// ResolveTier maps an amount to its execution tier.
func (r *TierResolver) ResolveTier(amountUSD decimal.Decimal) Tier {
	if amountUSD.GreaterThanOrEqual(r.MPCThresholdUSD) {
		return TierConfidential
	}
	if amountUSD.GreaterThanOrEqual(r.FHEThresholdUSD) {
		return TierProtected
	}
	return TierPublic
}

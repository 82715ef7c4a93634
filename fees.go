package tollgate

import "github.com/shopspring/decimal"

// FeeModel derives the usage fee from the privacy benefit actually
// delivered: the slippage a public execution of the same size would have
// incurred, minus the slippage of the confidential path. The fee is a share
// of that saving, floored and ceilinged by configured bounds -- never a
// flat tax.
type FeeModel struct {
	// Rate is the share of the slippage saving charged as the fee.
	Rate decimal.Decimal
	// MinFeeUSD floors the fee for any non-public execution.
	MinFeeUSD decimal.Decimal
	// MaxFeeUSD caps the fee for very large executions.
	MaxFeeUSD decimal.Decimal
}

// DefaultFeeModel returns the production fee parameters.
func DefaultFeeModel() FeeModel {
	return FeeModel{
		Rate:      decimal.RequireFromString("0.10"),
		MinFeeUSD: decimal.RequireFromString("0.10"),
		MaxFeeUSD: decimal.NewFromInt(10_000),
	}
}

// confidentialSlippageBps is the residual slippage of a fully confidential
// execution.
var confidentialSlippageBps = decimal.NewFromInt(5)

var (
	bpsDivisor = decimal.NewFromInt(10_000)
	two        = decimal.NewFromInt(2)
)

// EstimatePublicSlippageBps estimates, in basis points, the slippage a
// public execution of this size would incur. Monotone step function of the
// amount.
func EstimatePublicSlippageBps(amountUSD decimal.Decimal) decimal.Decimal {
	switch {
	case amountUSD.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)):
		return decimal.NewFromInt(500)
	case amountUSD.GreaterThanOrEqual(decimal.NewFromInt(500_000)):
		return decimal.NewFromInt(300)
	case amountUSD.GreaterThanOrEqual(decimal.NewFromInt(100_000)):
		return decimal.NewFromInt(150)
	case amountUSD.GreaterThanOrEqual(decimal.NewFromInt(50_000)):
		return decimal.NewFromInt(75)
	default:
		return decimal.NewFromInt(25)
	}
}

// SlippageSavedBps returns the basis points of slippage avoided by running
// at the given tier instead of publicly. Confidential and maximum tiers
// reduce slippage to a fixed residual; lower tiers halve the public
// estimate.
func SlippageSavedBps(tier Tier, amountUSD decimal.Decimal) decimal.Decimal {
	estimated := EstimatePublicSlippageBps(amountUSD)

	var actual decimal.Decimal
	if tier.AtLeast(TierConfidential) {
		actual = confidentialSlippageBps
	} else {
		actual = estimated.Div(two)
	}

	saved := estimated.Sub(actual)
	if saved.IsNegative() {
		return decimal.Zero
	}
	return saved
}

// Fee converts saved basis points into the dollar fee for one execution,
// clamped to the model's bounds.
func (m FeeModel) Fee(savedBps, amountUSD decimal.Decimal) decimal.Decimal {
	savedUSD := savedBps.Div(bpsDivisor).Mul(amountUSD)
	fee := savedUSD.Mul(m.Rate)

	if fee.LessThan(m.MinFeeUSD) {
		return m.MinFeeUSD
	}
	if fee.GreaterThan(m.MaxFeeUSD) {
		return m.MaxFeeUSD
	}
	return fee
}

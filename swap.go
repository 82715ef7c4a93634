package tollgate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// OpConfidentialSwap is the MPC operation for one party's leg of a swap.
const OpConfidentialSwap Operation = "confidential_swap"

// SwapParty is one participant in a multi-party confidential swap.
type SwapParty struct {
	AgentID   string          `json:"agentId"`
	AssetIn   string          `json:"assetIn"`
	AssetOut  string          `json:"assetOut"`
	AmountUSD decimal.Decimal `json:"amountUsd"`
}

// SwapSettlement is the per-party outcome of a multi-party swap.
type SwapSettlement struct {
	AgentID       string `json:"agentId"`
	Committed     bool   `json:"committed"`
	ComputationID string `json:"computationId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// MultiPartySwapResult is the overall outcome of a multi-party swap.
type MultiPartySwapResult struct {
	SwapID         string           `json:"swapId"`
	Success        bool             `json:"success"`
	Settlements    []SwapSettlement `json:"settlements"`
	TotalVolumeUSD decimal.Decimal  `json:"totalVolumeUsd"`
	FeeUSD         decimal.Decimal  `json:"feeUsd"`
}

// MultiPartySwap submits one confidential MPC call per party. A party is
// committed iff its call succeeds; the swap as a whole succeeds only when
// every party committed. Volume and fee accrue regardless of per-party
// outcome, since the cluster performed the work either way.
func (p *Pipeline) MultiPartySwap(ctx context.Context, parties []SwapParty) (*MultiPartySwapResult, error) {
	if len(parties) == 0 {
		return nil, fmt.Errorf("swap requires at least one party")
	}
	if p.mpc == nil {
		return nil, fmt.Errorf("mpc executor not configured")
	}

	result := &MultiPartySwapResult{
		SwapID:      p.tokens.NewID("swap"),
		Success:     true,
		Settlements: make([]SwapSettlement, 0, len(parties)),
	}

	totalVolume := decimal.Zero
	for _, party := range parties {
		totalVolume = totalVolume.Add(party.AmountUSD)

		inputs := map[string]string{
			"agent_id":  party.AgentID,
			"asset_in":  party.AssetIn,
			"asset_out": party.AssetOut,
			"amount":    party.AmountUSD.String(),
		}
		metadata := map[string]string{
			"swap_id": result.SwapID,
		}

		settlement := SwapSettlement{AgentID: party.AgentID}
		res, err := p.mpc.Submit(ctx, OpConfidentialSwap, inputs, metadata)
		switch {
		case err != nil:
			settlement.Error = err.Error()
			result.Success = false
		case !res.Success:
			settlement.ComputationID = res.ComputationID
			settlement.Error = "swap leg rejected by cluster"
			result.Success = false
		default:
			settlement.Committed = true
			settlement.ComputationID = res.ComputationID
		}
		result.Settlements = append(result.Settlements, settlement)
	}

	tier := p.resolver.ResolveTier(totalVolume)
	saved := SlippageSavedBps(tier, totalVolume)
	result.TotalVolumeUSD = totalVolume
	result.FeeUSD = p.fees.Fee(saved, totalVolume)

	p.recordExecution(totalVolume, result.FeeUSD)

	return result, nil
}

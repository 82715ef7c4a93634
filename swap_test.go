package tollgate

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func testParties(amounts ...int64) []SwapParty {
	parties := make([]SwapParty, 0, len(amounts))
	for i, a := range amounts {
		parties = append(parties, SwapParty{
			AgentID:   string(rune('a' + i)),
			AssetIn:   "ETH",
			AssetOut:  "USDC",
			AmountUSD: decimal.NewFromInt(a),
		})
	}
	return parties
}

func TestMultiPartySwapAllCommit(t *testing.T) {
	mpc := &mockMPC{}
	p := newTestPipeline(nil, nil, mpc)

	res, err := p.MultiPartySwap(context.Background(), testParties(60_000, 90_000))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("swap failed: %+v", res.Settlements)
	}
	for _, s := range res.Settlements {
		if !s.Committed {
			t.Fatalf("party %s not committed", s.AgentID)
		}
	}
	if !res.TotalVolumeUSD.Equal(decimal.NewFromInt(150_000)) {
		t.Fatalf("volume = %s, want 150000", res.TotalVolumeUSD)
	}
	if !res.FeeUSD.IsPositive() {
		t.Fatalf("fee = %s, want positive", res.FeeUSD)
	}
	if mpc.callCount() != 2 {
		t.Fatalf("cluster calls = %d, want one per party", mpc.callCount())
	}
}

func TestMultiPartySwapPartialFailure(t *testing.T) {
	calls := 0
	mpc := &mockMPC{
		submit: func(Operation, map[string]string, map[string]string) (*MPCResult, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("leg rejected")
			}
			return &MPCResult{Success: true, ComputationID: "comp_1"}, nil
		},
	}
	p := newTestPipeline(nil, nil, mpc)

	res, err := p.MultiPartySwap(context.Background(), testParties(10_000, 20_000, 30_000))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("swap with a failed leg must not succeed overall")
	}
	if !res.Settlements[0].Committed || res.Settlements[1].Committed || !res.Settlements[2].Committed {
		t.Fatalf("settlements = %+v, want only leg 2 uncommitted", res.Settlements)
	}
	if res.Settlements[1].Error == "" {
		t.Fatal("failed leg should carry its error")
	}

	// Volume and fee accrue even for the failed leg.
	stats := p.Stats()
	if !stats.TotalVolumeUSD.Equal(decimal.NewFromInt(60_000)) {
		t.Fatalf("volume = %s, want 60000", stats.TotalVolumeUSD)
	}
}

func TestMultiPartySwapValidation(t *testing.T) {
	p := newTestPipeline(nil, nil, &mockMPC{})
	if _, err := p.MultiPartySwap(context.Background(), nil); err == nil {
		t.Fatal("zero parties must be an error")
	}

	noMPC := newTestPipeline(nil, nil, nil)
	if _, err := noMPC.MultiPartySwap(context.Background(), testParties(10)); err == nil {
		t.Fatal("missing executor must be an error")
	}
}

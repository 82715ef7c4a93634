package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

func TestValidateOperationInputs(t *testing.T) {
	tests := []struct {
		name    string
		op      tollgate.Operation
		inputs  map[string]string
		wantErr bool
	}{
		{
			name:   "valid swap",
			op:     tollgate.OpSwap,
			inputs: map[string]string{"asset_in": "ETH", "asset_out": "USDC"},
		},
		{
			name:    "swap missing asset_out",
			op:      tollgate.OpSwap,
			inputs:  map[string]string{"asset_in": "ETH"},
			wantErr: true,
		},
		{
			name:    "swap non-numeric slippage",
			op:      tollgate.OpSwap,
			inputs:  map[string]string{"asset_in": "ETH", "asset_out": "USDC", "slippage_bps": "lots"},
			wantErr: true,
		},
		{
			name:   "valid transfer",
			op:     tollgate.OpTransfer,
			inputs: map[string]string{"recipient": "0xabc", "memo": "rent"},
		},
		{
			name:    "transfer empty recipient",
			op:      tollgate.OpTransfer,
			inputs:  map[string]string{"recipient": ""},
			wantErr: true,
		},
		{
			name:   "valid bid",
			op:     tollgate.OpBid,
			inputs: map[string]string{"auction_id": "auction_1"},
		},
		{
			name:   "valid vote",
			op:     tollgate.OpVote,
			inputs: map[string]string{"proposal_id": "prop_1", "choice": "yes"},
		},
		{
			name:    "vote missing choice",
			op:      tollgate.OpVote,
			inputs:  map[string]string{"proposal_id": "prop_1"},
			wantErr: true,
		},
		{
			name:   "valid delegate",
			op:     tollgate.OpDelegate,
			inputs: map[string]string{"delegatee": "0xdef"},
		},
		{
			name:   "valid prove",
			op:     tollgate.OpProve,
			inputs: map[string]string{"circuit": "kyc_tier"},
		},
		{
			name:    "unknown operation",
			op:      tollgate.Operation("teleport"),
			inputs:  map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOperationInputs(tt.op, tt.inputs)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

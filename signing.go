package tollgate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OpThresholdSign is the MPC operation for distributed signing.
const OpThresholdSign Operation = "threshold_sign"

// ThresholdSignResult is the outcome of a threshold signing round.
type ThresholdSignResult struct {
	Success             bool     `json:"success"`
	ThresholdMet        bool     `json:"thresholdMet"`
	SignatureCommitment string   `json:"signatureCommitment,omitempty"`
	ComputationID       string   `json:"computationId,omitempty"`
	Participants        []string `json:"participants,omitempty"`
	Error               string   `json:"error,omitempty"`
}

// ThresholdSign runs a k-of-n signing round over the MPC cluster.
//
// Fails closed when fewer signers than the threshold are supplied: no MPC
// call is made. Participant selection is deterministic -- the first k
// signers in list order -- so retries commit to the same signer set.
func (p *Pipeline) ThresholdSign(ctx context.Context, message []byte, signers []string, threshold int) *ThresholdSignResult {
	if threshold <= 0 || len(signers) < threshold {
		return &ThresholdSignResult{
			Success:      false,
			ThresholdMet: false,
			Error:        fmt.Sprintf("need %d signers, have %d", threshold, len(signers)),
		}
	}

	if p.mpc == nil {
		return &ThresholdSignResult{
			Success:      false,
			ThresholdMet: true,
			Error:        "mpc executor not configured",
		}
	}

	participants := signers[:threshold]

	inputs := map[string]string{
		"message_hash": hashHex(message),
	}
	for i, signer := range participants {
		inputs[fmt.Sprintf("signer_%d", i)] = signer
	}
	metadata := map[string]string{
		"threshold": fmt.Sprintf("%d", threshold),
	}

	res, err := p.mpc.Submit(ctx, OpThresholdSign, inputs, metadata)
	if err != nil {
		return &ThresholdSignResult{
			Success:      false,
			ThresholdMet: true,
			Error:        err.Error(),
		}
	}
	if !res.Success {
		return &ThresholdSignResult{
			Success:       false,
			ThresholdMet:  true,
			ComputationID: res.ComputationID,
			Error:         "signing round rejected by cluster",
		}
	}

	return &ThresholdSignResult{
		Success:             true,
		ThresholdMet:        true,
		SignatureCommitment: signatureCommitment(message, participants),
		ComputationID:       res.ComputationID,
		Participants:        participants,
	}
}

// signatureCommitment binds the message hash to the participating signer
// set. The commitment is stable across retries because the participant
// order is deterministic.
func signatureCommitment(message []byte, participants []string) string {
	h := sha256.New()
	h.Write(message)
	for _, signer := range participants {
		h.Write([]byte(signer))
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func hashHex(message []byte) string {
	sum := sha256.Sum256(message)
	return hex.EncodeToString(sum[:])
}

package tollgate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Network identifies a settlement network in CAIP-2 format,
// e.g. "eip155:8453" for Base or "solana:mainnet".
type Network string

// Parse splits the network into namespace and reference components.
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.Split(string(n), ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid network format: %s", n)
	}
	return parts[0], parts[1], nil
}

// Networks accepted for on-chain settlement, plus the internal credits rail.
const (
	NetworkBase    Network = "eip155:8453"
	NetworkSolana  Network = "solana:mainnet"
	NetworkCredits Network = "internal:credits"
)

// Tier is the privacy/execution level selected for one invocation.
type Tier string

const (
	TierPublic       Tier = "public"
	TierProtected    Tier = "protected"
	TierConfidential Tier = "confidential"
	TierMaximum      Tier = "maximum"
)

// rank orders tiers from weakest to strongest privacy.
func (t Tier) rank() int {
	switch t {
	case TierProtected:
		return 1
	case TierConfidential:
		return 2
	case TierMaximum:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether t provides privacy equal to or stronger than other.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

// Operation is a capability operation admitted to the execution pipeline.
type Operation string

const (
	OpSwap     Operation = "swap"
	OpTransfer Operation = "transfer"
	OpBid      Operation = "bid"
	OpVote     Operation = "vote"
	OpDelegate Operation = "delegate"
	OpProve    Operation = "prove"
)

// TrustLevel is the caller's standing with the platform. Trusted and premium
// callers are exempt from payment enforcement.
type TrustLevel string

const (
	TrustUnknown  TrustLevel = "unknown"
	TrustStandard TrustLevel = "standard"
	TrustTrusted  TrustLevel = "trusted"
	TrustPremium  TrustLevel = "premium"
)

// PaymentMethod is one way a requirement can be satisfied, ranked by
// preference in PaymentRequirement.PaymentMethods.
type PaymentMethod struct {
	Method    string          `json:"method"`
	Network   Network         `json:"network"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// Method identifiers for PaymentMethod and PaymentProof.
const (
	MethodUSDCBase   = "usdc_base"
	MethodUSDCSolana = "usdc_solana"
	MethodNativeETH  = "native_eth"
	MethodCredits    = "credits"
)

// PaymentRequirement is issued once per gated invocation attempt. It is
// single-use: the first successful verification consumes it.
type PaymentRequirement struct {
	PaymentID      string          `json:"paymentId"`
	CapabilityID   string          `json:"capabilityId"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Nonce          string          `json:"nonce"`
	PaymentMethods []PaymentMethod `json:"paymentMethods"`
	CreatedAt      time.Time       `json:"createdAt"`
	ExpiresAt      time.Time       `json:"expiresAt"`
}

// AcceptedNetworks lists the networks of the ranked payment methods.
func (r *PaymentRequirement) AcceptedNetworks() []Network {
	networks := make([]Network, 0, len(r.PaymentMethods))
	for _, m := range r.PaymentMethods {
		networks = append(networks, m.Network)
	}
	return networks
}

// PaymentProof is submitted by a caller to satisfy a requirement.
type PaymentProof struct {
	PaymentID       string          `json:"paymentId"`
	Method          string          `json:"method"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	PayerAddress    string          `json:"payerAddress,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Network         Network         `json:"network"`
	Nonce           string          `json:"nonce"`
	Timestamp       time.Time       `json:"timestamp"`
}

// SettlementStatus tracks how far a verified payment has progressed.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementVerified  SettlementStatus = "verified"
	SettlementSettled   SettlementStatus = "settled"
	SettlementRefunded  SettlementStatus = "refunded"
	SettlementExpired   SettlementStatus = "expired"
	SettlementSimulated SettlementStatus = "simulated"
)

// PaymentRecord is the durable result of a verified payment. Records are
// immutable once settled and purged after the retention window.
type PaymentRecord struct {
	PaymentID       string           `json:"paymentId"`
	CapabilityID    string           `json:"capabilityId"`
	AgentID         string           `json:"agentId"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	Method          string           `json:"method"`
	Network         Network          `json:"network"`
	TransactionHash string           `json:"transactionHash,omitempty"`
	Status          SettlementStatus `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	VerifiedAt      *time.Time       `json:"verifiedAt,omitempty"`
	SettledAt       *time.Time       `json:"settledAt,omitempty"`
}

// CapabilityEconomics is the declared economic metadata of a capability.
// It lives in the capability registry; the ledger only reads it.
type CapabilityEconomics struct {
	PaymentsEnabled    bool            `json:"paymentsEnabled"`
	CostUSD            decimal.Decimal `json:"costUsd"`
	Currency           string          `json:"currency"`
	SettlementOptional bool            `json:"settlementOptional"`
}

// FailureReason classifies why a proof was rejected. Callers render these
// into 402-retry messages, so each reason must be specific.
type FailureReason string

const (
	ReasonNotFound      FailureReason = "NOT_FOUND"
	ReasonExpired       FailureReason = "EXPIRED"
	ReasonReplayed      FailureReason = "REPLAYED"
	ReasonNonceMismatch FailureReason = "NONCE_MISMATCH"
	ReasonUnderpaid     FailureReason = "UNDERPAID"
)

// Verification is the outcome of checking one payment proof.
type Verification struct {
	Valid      bool             `json:"valid"`
	Reason     FailureReason    `json:"reason,omitempty"`
	Message    string           `json:"message,omitempty"`
	Settlement SettlementStatus `json:"settlement,omitempty"`
	PaymentID  string           `json:"paymentId"`
}

// ExecutionRequest is one admitted invocation to the pipeline. Inputs are
// validated at the router boundary before the pipeline sees them.
type ExecutionRequest struct {
	AgentID        string            `json:"agentId"`
	Operation      Operation         `json:"operation"`
	AmountUSD      decimal.Decimal   `json:"amountUsd"`
	Inputs         map[string]string `json:"inputs,omitempty"`
	RequiredProofs []string          `json:"requiredProofs,omitempty"`
	PrivacyLevel   Tier              `json:"privacyLevel,omitempty"`
}

// ExecutionResult is the immutable outcome of one pipeline run. On failure
// it still carries the stages that completed before the failing one.
type ExecutionResult struct {
	ExecutionID      string           `json:"executionId"`
	Tier             Tier             `json:"tier"`
	StagesCompleted  []string         `json:"stagesCompleted"`
	FeeUSD           decimal.Decimal  `json:"feeUsd"`
	SlippageSavedBps *decimal.Decimal `json:"slippageSavedBps,omitempty"`
	TotalTimeMs      int64            `json:"totalTimeMs"`
	StageTimes       map[string]int64 `json:"stageTimes"`
	Success          bool             `json:"success"`
	Error            string           `json:"error,omitempty"`
}

// Stage names appearing in ExecutionResult.StagesCompleted.
const (
	StagePublicExecution = "public_execution"
	StageEligibility     = "noir_eligibility"
	StageEncrypt         = "inco_encrypt"
	StageMPC             = "arcium_mpc"
	StageExecutionProof  = "noir_execution_proof"
)

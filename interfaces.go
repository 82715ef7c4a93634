package tollgate

import (
	"context"
	"time"
)

// ============================================================================
// Confidential-compute collaborators (outbound)
// ============================================================================

// EligibilityProof is the output of a zero-knowledge proving request.
type EligibilityProof struct {
	Proof           string   `json:"proof"`
	VerificationKey string   `json:"verificationKey"`
	PublicOutputs   []string `json:"publicOutputs,omitempty"`
}

// EligibilityProver produces zero-knowledge attestations that an invocation
// meets a policy threshold without revealing the private inputs.
//
// Implementations must be deterministic in their success/failure
// classification: the same inputs always pass or always fail, even if the
// proof bytes themselves are randomized.
type EligibilityProver interface {
	Prove(ctx context.Context, circuit string, publicInputs, privateInputs map[string]string) (*EligibilityProof, error)
}

// Ciphertext is the output of a homomorphic encryption request. The core
// never decrypts it; it only forwards it to downstream stages.
type Ciphertext struct {
	Ciphertext string `json:"ciphertext"`
	PublicKey  string `json:"publicKey"`
}

// ParameterEncryptor encrypts sensitive invocation parameters through an
// external FHE service.
type ParameterEncryptor interface {
	Encrypt(ctx context.Context, value string, typeTag string) (*Ciphertext, error)
}

// MPCResult is the outcome of one multi-party computation submission.
type MPCResult struct {
	Success       bool              `json:"success"`
	ComputationID string            `json:"computationId"`
	Proof         string            `json:"proof,omitempty"`
	Attestation   string            `json:"attestation,omitempty"`
	Outputs       map[string]string `json:"outputs,omitempty"`
}

// MPCExecutor submits operations to an external confidential-compute
// cluster for multi-party execution.
type MPCExecutor interface {
	Submit(ctx context.Context, op Operation, encryptedInputs map[string]string, metadata map[string]string) (*MPCResult, error)
}

// ============================================================================
// Injected sources
// ============================================================================

// Clock supplies the current time. Injected so expiry and retention
// behavior is testable without sleeping.
type Clock func() time.Time

// TokenSource supplies opaque identifiers and single-use nonces. Injected so
// tests can supply deterministic sequences and assert replay protection
// precisely.
type TokenSource interface {
	// NewID returns a fresh opaque identifier with the given prefix,
	// e.g. NewID("pay") -> "pay_9f2c...".
	NewID(prefix string) string

	// NewNonce returns a random token that must never repeat across calls.
	NewNonce() string
}

// ============================================================================
// Stores
// ============================================================================

// RequirementStore holds outstanding payment requirements keyed by payment
// id. Implementations need not be safe for concurrent use; the ledger
// serializes all access so consume-and-delete stays atomic.
type RequirementStore interface {
	Get(paymentID string) (*PaymentRequirement, bool)
	Put(paymentID string, req *PaymentRequirement)
	Delete(paymentID string)
	// EvictOldest removes the entry that was inserted first.
	EvictOldest()
	Len() int
	// Range visits entries in insertion order until fn returns false.
	Range(fn func(paymentID string, req *PaymentRequirement) bool)
}

// RecordStore holds historical payment records keyed by payment id, with
// the same single-writer contract as RequirementStore.
type RecordStore interface {
	Get(paymentID string) (*PaymentRecord, bool)
	Put(paymentID string, rec *PaymentRecord)
	Delete(paymentID string)
	EvictOldest()
	Len() int
	Range(fn func(paymentID string, rec *PaymentRecord) bool)
}

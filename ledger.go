package tollgate

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// LedgerConfig bounds the ledger's tables and sets its payment policy.
type LedgerConfig struct {
	// MaxRequirements caps the outstanding-requirement table.
	MaxRequirements int
	// MaxRecords caps the historical record table.
	MaxRecords int
	// MaxNonces caps the consumed-nonce replay set.
	MaxNonces int
	// RequirementTTL is how long an issued requirement stays payable.
	RequirementTTL time.Duration
	// RecordRetention is how long verified records are kept before purge.
	RecordRetention time.Duration
	// UnderpayTolerance is the fraction of the required amount that still
	// satisfies a requirement, absorbing currency-conversion rounding.
	UnderpayTolerance decimal.Decimal
	// Recipients maps each settlement network to its receiving address.
	Recipients map[Network]string
	// CreditsAccount is the internal account receiving credit payments.
	CreditsAccount string
}

// DefaultLedgerConfig returns the production defaults.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxRequirements:   10_000,
		MaxRecords:        50_000,
		MaxNonces:         100_000,
		RequirementTTL:    5 * time.Minute,
		RecordRetention:   30 * 24 * time.Hour,
		UnderpayTolerance: decimal.RequireFromString("0.99"),
		Recipients: map[Network]string{
			NetworkBase:   "0x2f4A673B8bB5e2e17E6Bc63dfd9e8d3a4a6eA1D4",
			NetworkSolana: "9B5XszUGdMaxCZ7uSQhPzdks5ZQSmWxrmzCSvtJ6Ns6g",
		},
		CreditsAccount: "tollgate-treasury",
	}
}

// RevenueTotals is a point-in-time snapshot of verified revenue.
type RevenueTotals struct {
	ByCurrency   map[string]decimal.Decimal `json:"byCurrency"`
	ByCapability map[string]decimal.Decimal `json:"byCapability"`
	ByAgent      map[string]decimal.Decimal `json:"byAgent"`
}

// Ledger issues payment requirements, verifies proofs against replay and
// tampering, records settlements, and tracks revenue. All state is bounded
// and in-memory; a production deployment may back the stores with a durable
// implementation without changing verification semantics.
type Ledger struct {
	mu sync.Mutex

	config       LedgerConfig
	clock        Clock
	tokens       TokenSource
	requirements RequirementStore
	records      RecordStore
	nonces       *nonceSet

	revenueByCurrency   map[string]decimal.Decimal
	revenueByCapability map[string]decimal.Decimal
	revenueByAgent      map[string]decimal.Decimal
}

// LedgerOption configures the ledger.
type LedgerOption func(*Ledger)

// WithLedgerConfig replaces the default configuration.
func WithLedgerConfig(cfg LedgerConfig) LedgerOption {
	return func(l *Ledger) {
		l.config = cfg
	}
}

// WithClock injects the time source.
func WithClock(clock Clock) LedgerOption {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithTokenSource injects the id/nonce source.
func WithTokenSource(tokens TokenSource) LedgerOption {
	return func(l *Ledger) {
		l.tokens = tokens
	}
}

// WithRequirementStore injects the outstanding-requirement table.
func WithRequirementStore(store RequirementStore) LedgerOption {
	return func(l *Ledger) {
		l.requirements = store
	}
}

// WithRecordStore injects the historical record table.
func WithRecordStore(store RecordStore) LedgerOption {
	return func(l *Ledger) {
		l.records = store
	}
}

// NewLedger creates a payment ledger with bounded in-memory state.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		config:              DefaultLedgerConfig(),
		clock:               time.Now,
		tokens:              NewRandomTokenSource(),
		revenueByCurrency:   make(map[string]decimal.Decimal),
		revenueByCapability: make(map[string]decimal.Decimal),
		revenueByAgent:      make(map[string]decimal.Decimal),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.requirements == nil {
		l.requirements = NewRequirementStore(l.config.MaxRequirements)
	}
	if l.records == nil {
		l.records = NewRecordStore(l.config.MaxRecords)
	}
	l.nonces = newNonceSet(l.config.MaxNonces)

	return l
}

// ShouldRequirePayment decides whether an invocation must pay before
// executing. Pure predicate: no state is touched.
//
// Payment is waived when the capability has payments disabled, declares a
// zero cost, marks settlement optional (payment is then offered but never
// enforced), when the caller already holds a valid capability token, or
// when the caller's trust tier is trusted or premium.
func (l *Ledger) ShouldRequirePayment(econ CapabilityEconomics, trust TrustLevel, hasToken bool) bool {
	if !econ.PaymentsEnabled {
		return false
	}
	if econ.CostUSD.LessThanOrEqual(decimal.Zero) {
		return false
	}
	if econ.SettlementOptional {
		return false
	}
	if hasToken {
		return false
	}
	if trust == TrustTrusted || trust == TrustPremium {
		return false
	}
	return true
}

// GenerateRequirement issues a fresh single-use payment requirement for one
// gated invocation attempt. Returns nil when the capability has payments
// disabled or a non-positive cost.
//
// Payment methods are ranked: USDC on Base, USDC on Solana, a native ETH
// equivalent, and internal credits last as the zero-latency option.
func (l *Ledger) GenerateRequirement(capabilityID, name, description string, econ CapabilityEconomics) *PaymentRequirement {
	if !econ.PaymentsEnabled || econ.CostUSD.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	currency := econ.Currency
	if currency == "" {
		currency = "USDC"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	req := &PaymentRequirement{
		PaymentID:    l.tokens.NewID("pay"),
		CapabilityID: capabilityID,
		Name:         name,
		Description:  description,
		Amount:       econ.CostUSD,
		Currency:     currency,
		Nonce:        l.tokens.NewNonce(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(l.config.RequirementTTL),
		PaymentMethods: []PaymentMethod{
			{Method: MethodUSDCBase, Network: NetworkBase, Recipient: l.config.Recipients[NetworkBase], Amount: econ.CostUSD, Currency: "USDC"},
			{Method: MethodUSDCSolana, Network: NetworkSolana, Recipient: l.config.Recipients[NetworkSolana], Amount: econ.CostUSD, Currency: "USDC"},
			{Method: MethodNativeETH, Network: NetworkBase, Recipient: l.config.Recipients[NetworkBase], Amount: econ.CostUSD, Currency: "ETH"},
			{Method: MethodCredits, Network: NetworkCredits, Recipient: l.config.CreditsAccount, Amount: econ.CostUSD, Currency: currency},
		},
	}

	// Put evicts the oldest requirement first when the table is full.
	l.requirements.Put(req.PaymentID, req)

	return req
}

// VerifyProof checks a submitted proof against its requirement. Checks run
// in a fixed order and short-circuit on the first failure, each mapped to a
// typed reason so the caller can render a specific 402-retry message.
//
// On success the nonce is consumed, the requirement is deleted (one-time
// use), and the settlement status is classified from the payment method and
// the shape of the transaction reference. The entire sequence runs under
// one lock so two concurrent verifications of the same proof yield exactly
// one success.
func (l *Ledger) VerifyProof(proof PaymentProof) Verification {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requirements.Get(proof.PaymentID)
	if !ok {
		return Verification{
			Valid:     false,
			Reason:    ReasonNotFound,
			Message:   fmt.Sprintf("no outstanding requirement for payment %s", proof.PaymentID),
			PaymentID: proof.PaymentID,
		}
	}

	if l.clock().After(req.ExpiresAt) {
		l.requirements.Delete(proof.PaymentID)
		return Verification{
			Valid:     false,
			Reason:    ReasonExpired,
			Message:   fmt.Sprintf("requirement expired at %s", req.ExpiresAt.UTC().Format(time.RFC3339)),
			PaymentID: proof.PaymentID,
		}
	}

	if l.nonces.Contains(proof.Nonce) {
		return Verification{
			Valid:     false,
			Reason:    ReasonReplayed,
			Message:   "nonce has already been consumed",
			PaymentID: proof.PaymentID,
		}
	}

	if proof.Nonce != req.Nonce {
		return Verification{
			Valid:     false,
			Reason:    ReasonNonceMismatch,
			Message:   "nonce does not match the issued requirement",
			PaymentID: proof.PaymentID,
		}
	}

	minimum := req.Amount.Mul(l.config.UnderpayTolerance)
	if proof.Amount.LessThan(minimum) {
		return Verification{
			Valid:     false,
			Reason:    ReasonUnderpaid,
			Message:   fmt.Sprintf("paid %s, requirement is %s %s (minimum %s)", proof.Amount, req.Amount, req.Currency, minimum),
			PaymentID: proof.PaymentID,
		}
	}

	l.nonces.Add(proof.Nonce)
	l.requirements.Delete(proof.PaymentID)

	return Verification{
		Valid:      true,
		Settlement: classifySettlement(proof),
		PaymentID:  proof.PaymentID,
	}
}

// classifySettlement decides how far a verified payment has settled.
//
// Credits settle instantly. An on-chain payment with a well-formed
// transaction reference for its network is treated as verified; a malformed
// reference defers to async on-chain confirmation; no reference at all
// means the caller simulated payment under an optional-settlement policy.
func classifySettlement(proof PaymentProof) SettlementStatus {
	if proof.Method == MethodCredits {
		return SettlementVerified
	}
	if proof.TransactionHash == "" {
		return SettlementSimulated
	}
	if validTransactionReference(proof.Network, proof.TransactionHash, proof.PayerAddress) {
		return SettlementVerified
	}
	return SettlementPending
}

// validTransactionReference checks the transaction reference (and payer
// address, when present) against the expected format for the network
// family.
func validTransactionReference(network Network, txHash, payer string) bool {
	namespace, _, err := network.Parse()
	if err != nil {
		return false
	}

	switch namespace {
	case "eip155":
		raw, err := hexutil.Decode(txHash)
		if err != nil || len(raw) != common.HashLength {
			return false
		}
		if payer != "" && !common.IsHexAddress(payer) {
			return false
		}
		return true
	case "solana":
		if _, err := solana.SignatureFromBase58(txHash); err != nil {
			return false
		}
		if payer != "" {
			if _, err := solana.PublicKeyFromBase58(payer); err != nil {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// RecordPayment persists the outcome of a verified payment and updates the
// revenue totals. The record table applies the same bounded insertion-order
// eviction as the requirement table.
func (l *Ledger) RecordPayment(paymentID, capabilityID, agentID string, amount decimal.Decimal, currency, method string, network Network, txHash string, status SettlementStatus) *PaymentRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	rec := &PaymentRecord{
		PaymentID:       paymentID,
		CapabilityID:    capabilityID,
		AgentID:         agentID,
		Amount:          amount,
		Currency:        currency,
		Method:          method,
		Network:         network,
		TransactionHash: txHash,
		Status:          status,
		CreatedAt:       now,
	}
	switch status {
	case SettlementVerified, SettlementSimulated:
		t := now
		rec.VerifiedAt = &t
	case SettlementSettled:
		t := now
		rec.VerifiedAt = &t
		rec.SettledAt = &t
	}

	l.records.Put(paymentID, rec)

	l.revenueByCurrency[currency] = l.revenueByCurrency[currency].Add(amount)
	l.revenueByCapability[capabilityID] = l.revenueByCapability[capabilityID].Add(amount)
	l.revenueByAgent[agentID] = l.revenueByAgent[agentID].Add(amount)

	return rec
}

// GetRecord returns a stored payment record, if retained.
func (l *Ledger) GetRecord(paymentID string) (*PaymentRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records.Get(paymentID)
}

// MarkSettled transitions a pending record to settled once out-of-band
// confirmation arrives. Settled records are immutable, so a second call is
// a no-op.
func (l *Ledger) MarkSettled(paymentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records.Get(paymentID)
	if !ok || rec.Status == SettlementSettled {
		return false
	}
	now := l.clock()
	rec.Status = SettlementSettled
	if rec.VerifiedAt == nil {
		rec.VerifiedAt = &now
	}
	rec.SettledAt = &now
	return true
}

// OutstandingRequirements reports the number of live requirements.
func (l *Ledger) OutstandingRequirements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requirements.Len()
}

// RevenueSnapshot returns a copy of the three revenue totals.
func (l *Ledger) RevenueSnapshot() RevenueTotals {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := RevenueTotals{
		ByCurrency:   make(map[string]decimal.Decimal, len(l.revenueByCurrency)),
		ByCapability: make(map[string]decimal.Decimal, len(l.revenueByCapability)),
		ByAgent:      make(map[string]decimal.Decimal, len(l.revenueByAgent)),
	}
	for k, v := range l.revenueByCurrency {
		snap.ByCurrency[k] = v
	}
	for k, v := range l.revenueByCapability {
		snap.ByCapability[k] = v
	}
	for k, v := range l.revenueByAgent {
		snap.ByAgent[k] = v
	}
	return snap
}

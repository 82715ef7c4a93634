package tollgate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// stageContext carries one request through the staged pipeline. Each stage
// reads the artifacts of earlier stages and appends its own.
type stageContext struct {
	request     ExecutionRequest
	executionID string
	tier        Tier

	eligibility *EligibilityProof
	ciphertext  *Ciphertext
	mpcResult   *MPCResult
}

// pipelineStage is one ordered step of the execution pipeline. The applies
// predicate makes the skip-vs-run rule for every stage visible in one
// place; a skipped stage contributes nothing to the result.
type pipelineStage struct {
	name    string
	applies func(tier Tier, req ExecutionRequest) bool
	run     func(ctx context.Context, sc *stageContext) error
}

// Pipeline executes admitted capability invocations through the ordered
// confidential-compute stages, derives the usage fee from the slippage
// avoided, and maintains running statistics. Stages within one Execute call
// run sequentially because each feeds the next; across requests the
// pipeline is safe for concurrent use.
type Pipeline struct {
	mu sync.Mutex

	resolver  *TierResolver
	fees      FeeModel
	prover    EligibilityProver
	encryptor ParameterEncryptor
	mpc       MPCExecutor
	tokens    TokenSource
	clock     Clock

	stages []pipelineStage

	executionCount int64
	totalVolumeUSD decimal.Decimal
	totalFeesUSD   decimal.Decimal

	orderbooks map[string]*EncryptedOrderbook
	auctions   map[string]*PrivateAuction
}

// PipelineStats is a point-in-time snapshot of the running counters.
type PipelineStats struct {
	ExecutionCount   int64           `json:"executionCount"`
	TotalVolumeUSD   decimal.Decimal `json:"totalVolumeUsd"`
	TotalFeesUSD     decimal.Decimal `json:"totalFeesUsd"`
	ActiveOrderbooks int             `json:"activeOrderbooks"`
	ActiveAuctions   int             `json:"activeAuctions"`
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithProver injects the eligibility/correctness prover.
func WithProver(prover EligibilityProver) PipelineOption {
	return func(p *Pipeline) {
		p.prover = prover
	}
}

// WithEncryptor injects the FHE parameter encryptor.
func WithEncryptor(encryptor ParameterEncryptor) PipelineOption {
	return func(p *Pipeline) {
		p.encryptor = encryptor
	}
}

// WithMPCExecutor injects the MPC executor.
func WithMPCExecutor(mpc MPCExecutor) PipelineOption {
	return func(p *Pipeline) {
		p.mpc = mpc
	}
}

// WithTierResolver replaces the default tier thresholds.
func WithTierResolver(resolver *TierResolver) PipelineOption {
	return func(p *Pipeline) {
		p.resolver = resolver
	}
}

// WithFeeModel replaces the default fee parameters.
func WithFeeModel(fees FeeModel) PipelineOption {
	return func(p *Pipeline) {
		p.fees = fees
	}
}

// WithPipelineTokenSource injects the id source.
func WithPipelineTokenSource(tokens TokenSource) PipelineOption {
	return func(p *Pipeline) {
		p.tokens = tokens
	}
}

// WithPipelineClock injects the time source used to stamp order books,
// orders, auctions, and bids.
func WithPipelineClock(clock Clock) PipelineOption {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// NewPipeline creates an execution pipeline. Collaborators left unset cause
// the stages that need them to fail, which only matters for requests above
// the public tier.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver:   NewTierResolver(),
		fees:       DefaultFeeModel(),
		tokens:     NewRandomTokenSource(),
		clock:      time.Now,
		orderbooks: make(map[string]*EncryptedOrderbook),
		auctions:   make(map[string]*PrivateAuction),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.stages = []pipelineStage{
		{
			name: StageEligibility,
			applies: func(_ Tier, req ExecutionRequest) bool {
				return len(req.RequiredProofs) > 0
			},
			run: p.runEligibility,
		},
		{
			name: StageEncrypt,
			applies: func(tier Tier, _ ExecutionRequest) bool {
				return tier.AtLeast(TierProtected)
			},
			run: p.runEncrypt,
		},
		{
			name: StageMPC,
			applies: func(tier Tier, _ ExecutionRequest) bool {
				return tier.AtLeast(TierConfidential)
			},
			run: p.runMPC,
		},
		{
			name: StageExecutionProof,
			applies: func(tier Tier, _ ExecutionRequest) bool {
				return tier.AtLeast(TierConfidential)
			},
			run: p.runExecutionProof,
		},
	}

	return p
}

// Execute runs one admitted invocation through the tier-conditional stages.
//
// Small public executions short-circuit without touching any collaborator.
// A stage failure aborts the run but preserves the stages and timings
// accumulated so far, so the caller can account for partial cost. Counters
// are incremented only on full success, never speculatively.
func (p *Pipeline) Execute(ctx context.Context, req ExecutionRequest) *ExecutionResult {
	tier := req.PrivacyLevel
	if tier == "" {
		tier = p.resolver.ResolveTier(req.AmountUSD)
	}

	result := &ExecutionResult{
		ExecutionID:     p.tokens.NewID("exec"),
		Tier:            tier,
		StagesCompleted: []string{},
		StageTimes:      make(map[string]int64),
		FeeUSD:          decimal.Zero,
	}

	started := time.Now()

	// Common case: a small public execution with no eligibility policy
	// attached. No collaborator is invoked and no fee is charged.
	if tier == TierPublic &&
		req.AmountUSD.LessThan(p.resolver.FHEThresholdUSD) &&
		len(req.RequiredProofs) == 0 {
		result.StagesCompleted = append(result.StagesCompleted, StagePublicExecution)
		result.Success = true
		result.TotalTimeMs = time.Since(started).Milliseconds()
		p.recordExecution(req.AmountUSD, result.FeeUSD)
		return result
	}

	sc := &stageContext{
		request:     req,
		executionID: result.ExecutionID,
		tier:        tier,
	}

	for _, stage := range p.stages {
		if !stage.applies(tier, req) {
			continue
		}

		stageStart := time.Now()
		err := stage.run(ctx, sc)
		result.StageTimes[stage.name] = time.Since(stageStart).Milliseconds()

		if err != nil {
			result.Success = false
			result.Error = fmt.Sprintf("stage %s: %v", stage.name, err)
			result.TotalTimeMs = time.Since(started).Milliseconds()
			return result
		}
		result.StagesCompleted = append(result.StagesCompleted, stage.name)
	}

	// A public-tier run that reaches here only did eligibility proving; the
	// operation itself still executes publicly.
	if tier == TierPublic {
		result.StagesCompleted = append(result.StagesCompleted, StagePublicExecution)
	} else {
		saved := SlippageSavedBps(tier, req.AmountUSD)
		result.SlippageSavedBps = &saved
		result.FeeUSD = p.fees.Fee(saved, req.AmountUSD)
	}

	result.Success = true
	result.TotalTimeMs = time.Since(started).Milliseconds()
	p.recordExecution(req.AmountUSD, result.FeeUSD)

	return result
}

func (p *Pipeline) runEligibility(ctx context.Context, sc *stageContext) error {
	if p.prover == nil {
		return fmt.Errorf("eligibility prover not configured")
	}

	circuit := sc.request.RequiredProofs[0]
	publicInputs := map[string]string{
		"threshold": sc.request.AmountUSD.String(),
		"operation": string(sc.request.Operation),
	}
	privateInputs := map[string]string{
		"agent_id": sc.request.AgentID,
	}
	for k, v := range sc.request.Inputs {
		privateInputs[k] = v
	}

	proof, err := p.prover.Prove(ctx, circuit, publicInputs, privateInputs)
	if err != nil {
		return err
	}
	sc.eligibility = proof
	return nil
}

func (p *Pipeline) runEncrypt(ctx context.Context, sc *stageContext) error {
	if p.encryptor == nil {
		return fmt.Errorf("parameter encryptor not configured")
	}

	ct, err := p.encryptor.Encrypt(ctx, sc.request.AmountUSD.String(), "euint64")
	if err != nil {
		return err
	}
	sc.ciphertext = ct
	return nil
}

func (p *Pipeline) runMPC(ctx context.Context, sc *stageContext) error {
	if p.mpc == nil {
		return fmt.Errorf("mpc executor not configured")
	}

	inputs := map[string]string{
		"agent_id": sc.request.AgentID,
	}
	if sc.ciphertext != nil {
		inputs["encrypted_amount"] = sc.ciphertext.Ciphertext
		inputs["encryption_key"] = sc.ciphertext.PublicKey
	}
	if sc.eligibility != nil {
		inputs["eligibility_proof"] = sc.eligibility.Proof
	}
	metadata := map[string]string{
		"execution_id": sc.executionID,
		"tier":         string(sc.tier),
	}

	res, err := p.mpc.Submit(ctx, sc.request.Operation, inputs, metadata)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("computation %s rejected by cluster", res.ComputationID)
	}
	sc.mpcResult = res
	return nil
}

func (p *Pipeline) runExecutionProof(ctx context.Context, sc *stageContext) error {
	if p.prover == nil {
		return fmt.Errorf("execution prover not configured")
	}

	publicInputs := map[string]string{
		"execution_id": sc.executionID,
		"operation":    string(sc.request.Operation),
	}
	privateInputs := map[string]string{}
	if sc.mpcResult != nil {
		privateInputs["attestation"] = sc.mpcResult.Attestation
		privateInputs["computation_id"] = sc.mpcResult.ComputationID
	}

	if _, err := p.prover.Prove(ctx, "execution_integrity", publicInputs, privateInputs); err != nil {
		return err
	}
	return nil
}

// recordExecution accrues the running counters after a fully successful run.
func (p *Pipeline) recordExecution(volumeUSD, feeUSD decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executionCount++
	p.totalVolumeUSD = p.totalVolumeUSD.Add(volumeUSD)
	p.totalFeesUSD = p.totalFeesUSD.Add(feeUSD)
}

// Stats returns a snapshot of the running counters and live registries.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PipelineStats{
		ExecutionCount:   p.executionCount,
		TotalVolumeUSD:   p.totalVolumeUSD,
		TotalFeesUSD:     p.totalFeesUSD,
		ActiveOrderbooks: len(p.orderbooks),
		ActiveAuctions:   len(p.auctions),
	}
}

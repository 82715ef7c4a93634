package tollgate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// seqTokens hands out deterministic ids and nonces so tests can assert
// replay-protection behavior precisely.
type seqTokens struct {
	mu     sync.Mutex
	ids    int
	nonces int
}

func (s *seqTokens) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids++
	return fmt.Sprintf("%s_%04d", prefix, s.ids)
}

func (s *seqTokens) NewNonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces++
	return fmt.Sprintf("nonce_%04d", s.nonces)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Mock collaborators with call counters, so tests can assert which stages
// touched which external service.

type mockProver struct {
	mu    sync.Mutex
	calls []string
	prove func(circuit string, public, private map[string]string) (*EligibilityProof, error)
}

func (m *mockProver) Prove(_ context.Context, circuit string, public, private map[string]string) (*EligibilityProof, error) {
	m.mu.Lock()
	m.calls = append(m.calls, circuit)
	m.mu.Unlock()
	if m.prove != nil {
		return m.prove(circuit, public, private)
	}
	return &EligibilityProof{Proof: "0xproof_" + circuit, VerificationKey: "0xvk"}, nil
}

func (m *mockProver) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockEncryptor struct {
	mu      sync.Mutex
	calls   int
	encrypt func(value, typeTag string) (*Ciphertext, error)
}

func (m *mockEncryptor) Encrypt(_ context.Context, value, typeTag string) (*Ciphertext, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.encrypt != nil {
		return m.encrypt(value, typeTag)
	}
	return &Ciphertext{Ciphertext: "0xcipher", PublicKey: "0xpubkey"}, nil
}

func (m *mockEncryptor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockMPC struct {
	mu     sync.Mutex
	calls  []Operation
	submit func(op Operation, inputs, metadata map[string]string) (*MPCResult, error)
}

func (m *mockMPC) Submit(_ context.Context, op Operation, inputs, metadata map[string]string) (*MPCResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	m.mu.Unlock()
	if m.submit != nil {
		return m.submit(op, inputs, metadata)
	}
	return &MPCResult{
		Success:       true,
		ComputationID: "comp_1",
		Attestation:   "0xattestation",
	}, nil
}

func (m *mockMPC) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestPipeline(prover *mockProver, encryptor *mockEncryptor, mpc *mockMPC) *Pipeline {
	opts := []PipelineOption{WithPipelineTokenSource(&seqTokens{})}
	if prover != nil {
		opts = append(opts, WithProver(prover))
	}
	if encryptor != nil {
		opts = append(opts, WithEncryptor(encryptor))
	}
	if mpc != nil {
		opts = append(opts, WithMPCExecutor(mpc))
	}
	return NewPipeline(opts...)
}

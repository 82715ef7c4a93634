// Package noir provides the HTTP client for the Noir proving service,
// implementing both eligibility and post-execution correctness proving.
package noir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

const (
	// DefaultProverURL is the default URL for the proving service.
	DefaultProverURL = "http://localhost:5055"

	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"
)

// Config configures the prover client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client talks to the proving service over HTTP.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient creates a prover client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{URL: DefaultProverURL}
	}

	httpCli := &http.Client{}
	if config.Timeout > 0 {
		httpCli.Timeout = config.Timeout
	}

	return &Client{
		URL:        config.URL,
		HTTPClient: httpCli,
	}
}

type proveRequest struct {
	Circuit       string            `json:"circuit"`
	PublicInputs  map[string]string `json:"publicInputs"`
	PrivateInputs map[string]string `json:"privateInputs"`
}

// Prove requests a proof from the named circuit.
func (c *Client) Prove(ctx context.Context, circuit string, publicInputs, privateInputs map[string]string) (*tollgate.EligibilityProof, error) {
	if circuit == "" {
		return nil, fmt.Errorf("circuit name is required")
	}

	jsonBody, err := json.Marshal(proveRequest{
		Circuit:       circuit,
		PublicInputs:  publicInputs,
		PrivateInputs: privateInputs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prove request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/prove", c.URL), bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create prove request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send prove request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to prove %s: %s", circuit, resp.Status)
	}

	var proof tollgate.EligibilityProof
	if err := json.NewDecoder(resp.Body).Decode(&proof); err != nil {
		return nil, fmt.Errorf("failed to decode prove response: %w", err)
	}
	if proof.Proof == "" {
		return nil, fmt.Errorf("prover returned an empty proof for %s", circuit)
	}

	return &proof, nil
}

// Ensure Client implements the prover interface
var _ tollgate.EligibilityProver = (*Client)(nil)

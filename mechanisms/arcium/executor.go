// Package arcium provides the HTTP client for the Arcium MPC cluster that
// executes admitted operations over encrypted inputs.
package arcium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

const (
	// DefaultClusterURL is the default URL for the MPC cluster gateway.
	DefaultClusterURL = "http://localhost:5077"

	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"
)

// Config configures the executor client.
type Config struct {
	URL     string
	Timeout time.Duration
	// ClusterPubkey is the cluster's Solana public key. When set, it is
	// validated at construction and pinned on every submission.
	ClusterPubkey string
}

// Client talks to the MPC cluster gateway over HTTP.
type Client struct {
	URL           string
	HTTPClient    *http.Client
	clusterPubkey string
}

// NewClient creates an executor client. Returns an error when the
// configured cluster pubkey is not a valid Solana public key.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = &Config{URL: DefaultClusterURL}
	}

	if config.ClusterPubkey != "" {
		if _, err := solana.PublicKeyFromBase58(config.ClusterPubkey); err != nil {
			return nil, fmt.Errorf("invalid cluster pubkey: %w", err)
		}
	}

	httpCli := &http.Client{}
	if config.Timeout > 0 {
		httpCli.Timeout = config.Timeout
	}

	return &Client{
		URL:           config.URL,
		HTTPClient:    httpCli,
		clusterPubkey: config.ClusterPubkey,
	}, nil
}

type submitRequest struct {
	Operation     string            `json:"operation"`
	Inputs        map[string]string `json:"inputs"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ClusterPubkey string            `json:"clusterPubkey,omitempty"`
}

// Submit sends one operation to the cluster for multi-party execution.
func (c *Client) Submit(ctx context.Context, op tollgate.Operation, encryptedInputs map[string]string, metadata map[string]string) (*tollgate.MPCResult, error) {
	jsonBody, err := json.Marshal(submitRequest{
		Operation:     string(op),
		Inputs:        encryptedInputs,
		Metadata:      metadata,
		ClusterPubkey: c.clusterPubkey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/computations", c.URL), bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send submit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to submit %s computation: %s", op, resp.Status)
	}

	var result tollgate.MPCResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}

	return &result, nil
}

// Ensure Client implements the executor interface
var _ tollgate.MPCExecutor = (*Client)(nil)

// Package inco provides the HTTP client for the Inco FHE service used to
// encrypt sensitive invocation parameters.
package inco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

const (
	// DefaultEncryptorURL is the default URL for the encryption service.
	DefaultEncryptorURL = "http://localhost:5066"

	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"
)

// Config configures the encryptor client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client talks to the FHE encryption service over HTTP.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient creates an encryptor client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{URL: DefaultEncryptorURL}
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

type encryptRequest struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Encrypt encrypts a value under the service's public key. The ciphertext
// handle comes back hex encoded; the core never decrypts it.
func (c *Client) Encrypt(ctx context.Context, value string, typeTag string) (*tollgate.Ciphertext, error) {
	jsonBody, err := json.Marshal(encryptRequest{Value: value, Type: typeTag})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal encrypt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/encrypt", c.URL), bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypt request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send encrypt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to encrypt value: %s", resp.Status)
	}

	var ct tollgate.Ciphertext
	if err := json.NewDecoder(resp.Body).Decode(&ct); err != nil {
		return nil, fmt.Errorf("failed to decode encrypt response: %w", err)
	}

	// The service returns EVM-style hex handles; reject anything else
	// before it propagates into downstream MPC inputs.
	if _, err := hexutil.Decode(ct.Ciphertext); err != nil {
		return nil, fmt.Errorf("malformed ciphertext handle: %w", err)
	}
	if ct.PublicKey != "" {
		if _, err := hexutil.Decode(ct.PublicKey); err != nil {
			return nil, fmt.Errorf("malformed encryption public key: %w", err)
		}
	}

	return &ct, nil
}

// Ensure Client implements the encryptor interface
var _ tollgate.ParameterEncryptor = (*Client)(nil)

package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

// Base64 regex pattern - requires at least one character
var base64Regex = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// ValidateAndDecodeProofHeader validates and decodes an X-Payment header.
// It performs comprehensive validation of:
// - Base64 format
// - JSON structure
// - Required fields and their types
//
// Returns the decoded PaymentProof if valid, or an error with a descriptive message.
func ValidateAndDecodeProofHeader(header string) (*tollgate.PaymentProof, error) {
	// Validate header is not empty
	if header == "" {
		return nil, fmt.Errorf("payment header is empty")
	}

	// Validate base64 format
	if !base64Regex.MatchString(header) {
		return nil, fmt.Errorf("invalid payment header format: not valid base64")
	}

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("invalid payment header format: base64 decoding failed - %v", err)
	}

	// Parse JSON into a map first for validation
	var raw map[string]interface{}
	if err := json.Unmarshal(decoded, &raw); err != nil {
		return nil, fmt.Errorf("invalid payment header format: not valid JSON - %v", err)
	}

	for _, field := range []string{"paymentId", "method", "nonce", "network"} {
		if _, exists := raw[field]; !exists {
			return nil, fmt.Errorf("missing required field: %s", field)
		}
		if _, ok := raw[field].(string); !ok {
			return nil, fmt.Errorf("invalid field type: %s must be a string", field)
		}
	}

	if _, exists := raw["amount"]; !exists {
		return nil, fmt.Errorf("missing required field: amount")
	}

	// If all validations pass, unmarshal into the PaymentProof struct
	var proof tollgate.PaymentProof
	if err := json.Unmarshal(decoded, &proof); err != nil {
		return nil, fmt.Errorf("failed to parse payment proof: %v", err)
	}

	return &proof, nil
}

// EncodeProofHeader encodes a proof into the X-Payment header format.
// Used by clients retrying after a 402 response.
func EncodeProofHeader(proof *tollgate.PaymentProof) (string, error) {
	raw, err := json.Marshal(proof)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment proof: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

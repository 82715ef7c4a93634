package arcium

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

// A syntactically valid Solana public key (the system program id).
const testClusterPubkey = "11111111111111111111111111111111"

func TestNewClientValidatesPubkey(t *testing.T) {
	_, err := NewClient(&Config{URL: "http://x", ClusterPubkey: "not-base58-0OIl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cluster pubkey")

	client, err := NewClient(&Config{URL: "http://x", ClusterPubkey: testClusterPubkey})
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/computations", r.URL.Path)

		var req submitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "swap", req.Operation)
		assert.Equal(t, "0xcipher", req.Inputs["encrypted_amount"])
		assert.Equal(t, testClusterPubkey, req.ClusterPubkey)

		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"computationId": "comp_42",
			"attestation":   "0xattested",
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{URL: server.URL, ClusterPubkey: testClusterPubkey})
	require.NoError(t, err)

	res, err := client.Submit(context.Background(), tollgate.OpSwap,
		map[string]string{"encrypted_amount": "0xcipher"},
		map[string]string{"execution_id": "exec_1"},
	)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "comp_42", res.ComputationID)
	assert.Equal(t, "0xattested", res.Attestation)
}

func TestSubmitServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(&Config{URL: server.URL})
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), tollgate.OpSwap, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit swap computation")
}

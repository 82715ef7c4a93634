package gin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tollgate "github.com/tollgate-protocol/tollgate-go"
	tollgatehttp "github.com/tollgate-protocol/tollgate-go/http"
)

func newGatedRouter(ledger *tollgate.Ledger, opts ...Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	econ := tollgate.CapabilityEconomics{
		PaymentsEnabled: true,
		CostUSD:         decimal.NewFromInt(5),
		Currency:        "USDC",
	}

	router := gin.New()
	router.GET("/search",
		PaymentMiddleware(ledger, "cap.search", econ, opts...),
		func(c *gin.Context) {
			settlement, _ := c.Get(ContextKeySettlement)
			c.JSON(http.StatusOK, gin.H{"settlement": settlement})
		},
	)
	return router
}

func TestGinMiddlewareChallenge(t *testing.T) {
	ledger := tollgate.NewLedger()
	router := newGatedRouter(ledger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	var body tollgatehttp.PaymentRequired
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, tollgate.ErrCodePaymentRequired, body.Code)
	require.NotNil(t, body.Requirement)
	assert.NotEmpty(t, body.Requirement.PaymentID)
}

func TestGinMiddlewarePayAndRetry(t *testing.T) {
	ledger := tollgate.NewLedger()
	router := newGatedRouter(ledger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var challenge tollgatehttp.PaymentRequired
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&challenge))

	header, err := tollgatehttp.EncodeProofHeader(&tollgate.PaymentProof{
		PaymentID: challenge.Requirement.PaymentID,
		Method:    tollgate.MethodCredits,
		Amount:    challenge.Requirement.Amount,
		Currency:  challenge.Requirement.Currency,
		Network:   tollgate.NetworkCredits,
		Nonce:     challenge.Requirement.Nonce,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set(tollgatehttp.HeaderPayment, header)
	req.Header.Set(tollgatehttp.HeaderAgentID, "agent-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(tollgate.SettlementVerified), rec.Header().Get(tollgatehttp.HeaderSettlement))
	assert.Contains(t, rec.Body.String(), string(tollgate.SettlementVerified))

	record, ok := ledger.GetRecord(challenge.Requirement.PaymentID)
	require.True(t, ok)
	assert.Equal(t, "agent-1", record.AgentID)
}

func TestGinMiddlewareTrustedBypass(t *testing.T) {
	ledger := tollgate.NewLedger()
	router := newGatedRouter(ledger, WithTrustResolver(func(*gin.Context) (tollgate.TrustLevel, bool) {
		return tollgate.TrustPremium, false
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	tollgate "github.com/tollgate-protocol/tollgate-go"
	tollgatehttp "github.com/tollgate-protocol/tollgate-go/http"
)

// PaymentMiddlewareOptions is the options for the PaymentMiddleware.
type PaymentMiddlewareOptions struct {
	Name          string
	Description   string
	TrustResolver func(c *gin.Context) (tollgate.TrustLevel, bool)
}

// Options is the type for the options for the PaymentMiddleware.
type Options func(*PaymentMiddlewareOptions)

// WithName is an option for the PaymentMiddleware to set the capability name.
func WithName(name string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Name = name
	}
}

// WithDescription is an option for the PaymentMiddleware to set the description.
func WithDescription(description string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Description = description
	}
}

// WithTrustResolver is an option for the PaymentMiddleware to set the trust lookup.
func WithTrustResolver(resolver func(c *gin.Context) (tollgate.TrustLevel, bool)) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.TrustResolver = resolver
	}
}

// ContextKeySettlement is the gin context key holding the settlement status
// of a verified payment.
const ContextKeySettlement = "tollgate.settlement"

// PaymentMiddleware is the Gin middleware gating one capability behind the
// payment ledger using the 402 exchange.
func PaymentMiddleware(ledger *tollgate.Ledger, capabilityID string, econ tollgate.CapabilityEconomics, opts ...Options) gin.HandlerFunc {
	options := &PaymentMiddlewareOptions{
		TrustResolver: func(*gin.Context) (tollgate.TrustLevel, bool) {
			return tollgate.TrustStandard, false
		},
	}

	for _, opt := range opts {
		opt(options)
	}

	return func(c *gin.Context) {
		trust, hasToken := options.TrustResolver(c)
		if !ledger.ShouldRequirePayment(econ, trust, hasToken) {
			c.Next()
			return
		}

		header := c.GetHeader(tollgatehttp.HeaderPayment)
		if header == "" {
			abortPaymentRequired(c, tollgatehttp.PaymentRequired{
				Error:       "payment required",
				Code:        tollgate.ErrCodePaymentRequired,
				Requirement: ledger.GenerateRequirement(capabilityID, options.Name, options.Description, econ),
			})
			return
		}

		proof, err := tollgatehttp.ValidateAndDecodeProofHeader(header)
		if err != nil {
			abortPaymentRequired(c, tollgatehttp.PaymentRequired{
				Error:       err.Error(),
				Code:        tollgate.ErrCodeInvalidProof,
				Requirement: ledger.GenerateRequirement(capabilityID, options.Name, options.Description, econ),
			})
			return
		}

		verification := ledger.VerifyProof(*proof)
		if !verification.Valid {
			perr := verification.PaymentError()
			abortPaymentRequired(c, tollgatehttp.PaymentRequired{
				Error:       perr.Message,
				Code:        perr.Code,
				Reason:      verification.Reason,
				Requirement: ledger.GenerateRequirement(capabilityID, options.Name, options.Description, econ),
			})
			return
		}

		ledger.RecordPayment(
			proof.PaymentID,
			capabilityID,
			c.GetHeader(tollgatehttp.HeaderAgentID),
			proof.Amount,
			proof.Currency,
			proof.Method,
			proof.Network,
			proof.TransactionHash,
			verification.Settlement,
		)

		c.Set(ContextKeySettlement, verification.Settlement)
		c.Header(tollgatehttp.HeaderSettlement, string(verification.Settlement))
		c.Next()
	}
}

func abortPaymentRequired(c *gin.Context, body tollgatehttp.PaymentRequired) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
}

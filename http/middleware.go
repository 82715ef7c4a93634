package http

import (
	"encoding/json"
	"net/http"

	tollgate "github.com/tollgate-protocol/tollgate-go"
)

// Headers used by the payment exchange.
const (
	HeaderPayment    = "X-Payment"
	HeaderAgentID    = "X-Agent-Id"
	HeaderSettlement = "X-Payment-Settlement"
)

// PaymentRequired is the 402 response body. It carries everything a caller
// needs to construct a valid proof on the next attempt.
type PaymentRequired struct {
	Error       string                       `json:"error"`
	Code        string                       `json:"code,omitempty"`
	Reason      tollgate.FailureReason       `json:"reason,omitempty"`
	Requirement *tollgate.PaymentRequirement `json:"requirement,omitempty"`
}

// TrustResolver maps an incoming request to the caller's trust level and
// whether it already holds a valid capability token.
type TrustResolver func(r *http.Request) (trust tollgate.TrustLevel, hasToken bool)

// PaymentMiddlewareOptions is the options for the PaymentMiddleware.
type PaymentMiddlewareOptions struct {
	Name          string
	Description   string
	TrustResolver TrustResolver
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
func WithTrustResolver(resolver TrustResolver) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.TrustResolver = resolver
	}
}

// PaymentMiddleware is the Go standard library middleware gating one
// capability behind the payment ledger.
//
// A request without a proof header receives a 402 carrying a fresh
// requirement. A request with an invalid proof receives a 402 with the
// typed rejection reason and a fresh requirement, since consumed or
// expired requirements cannot be retried. A verified proof is recorded and
// the request proceeds.
func PaymentMiddleware(ledger *tollgate.Ledger, capabilityID string, econ tollgate.CapabilityEconomics, opts ...Options) func(http.Handler) http.Handler {
	options := &PaymentMiddlewareOptions{
		TrustResolver: func(*http.Request) (tollgate.TrustLevel, bool) {
			return tollgate.TrustStandard, false
		},
	}

	for _, opt := range opts {
		opt(options)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trust, hasToken := options.TrustResolver(r)
			if !ledger.ShouldRequirePayment(econ, trust, hasToken) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(HeaderPayment)
			if header == "" {
				writePaymentRequired(w, PaymentRequired{
					Error:       "payment required",
					Code:        tollgate.ErrCodePaymentRequired,
					Requirement: ledger.GenerateRequirement(capabilityID, options.Name, options.Description, econ),
				})
				return
			}

			proof, err := ValidateAndDecodeProofHeader(header)
			if err != nil {
				writePaymentRequired(w, PaymentRequired{
					Error:       err.Error(),
					Code:        tollgate.ErrCodeInvalidProof,
					Requirement: ledger.GenerateRequirement(capabilityID, options.Name, options.Description, econ),
				})
				return
			}

			verification := ledger.VerifyProof(*proof)
			if !verification.Valid {
				perr := verification.PaymentError()
				writePaymentRequired(w, PaymentRequired{
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
				r.Header.Get(HeaderAgentID),
				proof.Amount,
				proof.Currency,
				proof.Method,
				proof.Network,
				proof.TransactionHash,
				verification.Settlement,
			)

			w.Header().Set(HeaderSettlement, string(verification.Settlement))
			next.ServeHTTP(w, r)
		})
	}
}

func writePaymentRequired(w http.ResponseWriter, body PaymentRequired) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(body)
}

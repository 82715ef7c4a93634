package tollgate

import "fmt"

// PaymentError is the structured error surfaced to callers of the 402
// exchange. The code is machine-readable; the message is for humans.
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes carried in 402 response bodies.
const (
	ErrCodePaymentRequired    = "payment_required"
	ErrCodeInvalidProof       = "invalid_proof"
	ErrCodeRequirementExpired = "requirement_expired"
	ErrCodeNonceConsumed      = "nonce_consumed"
	ErrCodeUnderpayment       = "underpayment"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// PaymentError converts a failed verification into its structured error.
// Returns nil for a valid verification.
func (v Verification) PaymentError() *PaymentError {
	if v.Valid {
		return nil
	}

	code := ErrCodeInvalidProof
	switch v.Reason {
	case ReasonExpired:
		code = ErrCodeRequirementExpired
	case ReasonReplayed:
		code = ErrCodeNonceConsumed
	case ReasonUnderpaid:
		code = ErrCodeUnderpayment
	}

	return NewPaymentError(code, v.Message, map[string]interface{}{
		"paymentId": v.PaymentID,
		"reason":    string(v.Reason),
	})
}

// Package errors provides standardized error handling for the membership service.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Identity payload validation
	ErrCodeInitDataValidationFailed ErrorCode = "INITDATA_VALIDATION_FAILED"
	ErrCodeMissingSignature         ErrorCode = "MISSING_SIGNATURE"
	ErrCodeInvalidSignature         ErrorCode = "INVALID_SIGNATURE"
	ErrCodeMissingUserField         ErrorCode = "MISSING_USER_FIELD"

	// Linkage
	ErrCodeUserNotLinked ErrorCode = "USER_NOT_LINKED"

	// Payment state
	ErrCodeAlreadyMember    ErrorCode = "ALREADY_MEMBER"
	ErrCodeDuplicatePayment ErrorCode = "DUPLICATE_PAYMENT"
	ErrCodeNoActivePayment  ErrorCode = "NO_ACTIVE_PAYMENT"
	ErrCodeNothingToRefund  ErrorCode = "NOTHING_TO_REFUND"

	// Capture/refund inconsistencies
	ErrCodeLinkageMissingAtCapture     ErrorCode = "LINKAGE_MISSING_AT_CAPTURE"
	ErrCodeEntitlementActivationFailed ErrorCode = "ENTITLEMENT_ACTIVATION_FAILED"
	ErrCodeEntitlementCancelFailed     ErrorCode = "ENTITLEMENT_CANCEL_FAILED"
	ErrCodeRefundFailed                ErrorCode = "REFUND_FAILED"

	// External collaborators
	ErrCodePlatformAPIFailed    ErrorCode = "PLATFORM_API_FAILED"
	ErrCodeCheckoutAnswerFailed ErrorCode = "CHECKOUT_ANSWER_FAILED"
	ErrCodeStoreOperationFailed ErrorCode = "STORE_OPERATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInitDataValidationFailedError wraps any failure while validating an
// identity payload. Callers never receive partially-validated data.
func NewInitDataValidationFailedError(reason error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInitDataValidationFailed,
		Message:   "InitData validation failed",
		Details:   reason.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserNotLinkedError creates a non-retryable linkage error.
func NewUserNotLinkedError(telegramUserID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotLinked,
		Message:   "Telegram account is not linked to a website account",
		Details:   fmt.Sprintf("telegramUserId: %d", telegramUserID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyMemberError creates a non-retryable payment state error.
func NewAlreadyMemberError(telegramUserID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyMember,
		Message:   "User already has an active membership",
		Details:   fmt.Sprintf("telegramUserId: %d", telegramUserID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicatePaymentError creates a non-retryable ledger error.
func NewDuplicatePaymentError(telegramUserID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicatePayment,
		Message:   "A payment record already exists for this user",
		Details:   fmt.Sprintf("telegramUserId: %d", telegramUserID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNothingToRefundError creates a non-retryable payment state error.
func NewNothingToRefundError(telegramUserID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNothingToRefund,
		Message:   "No payment record exists to refund",
		Details:   fmt.Sprintf("telegramUserId: %d", telegramUserID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLinkageMissingAtCaptureError reports the inconsistency where money was
// captured but no website account is linked. Never silently swallowed.
func NewLinkageMissingAtCaptureError(telegramUserID int64, chargeID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLinkageMissingAtCapture,
		Message:   "Payment captured but no website account linkage exists",
		Details:   fmt.Sprintf("telegramUserId: %d, chargeId: %s", telegramUserID, chargeID),
		Retryable: false,
		Metadata: map[string]interface{}{
			"telegramUserId": telegramUserID,
			"chargeId":       chargeID,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEntitlementActivationFailedError reports a captured payment whose
// website-side activation is still pending. The ledger entry stays.
func NewEntitlementActivationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntitlementActivationFailed,
		Message:   "Payment captured but entitlement activation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntitlementCancelFailedError reports funds returned with entitlement
// still active; requires out-of-band reconciliation.
func NewEntitlementCancelFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntitlementCancelFailed,
		Message:   "Refund issued but entitlement cancellation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRefundFailedError creates a retryable platform refund error. No state
// was mutated.
func NewRefundFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRefundFailed,
		Message:   "Platform refund request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlatformAPIFailedError creates a retryable Bot API error.
func NewPlatformAPIFailedError(method string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePlatformAPIFailed,
		Message:   "Telegram Bot API call failed",
		Details:   fmt.Sprintf("method: %s, error: %s", method, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCheckoutAnswerFailedError reports a pre-checkout query that could not
// be answered at all. Fatal to that transaction.
func NewCheckoutAnswerFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCheckoutAnswerFailed,
		Message:   "Failed to answer pre-checkout query",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreOperationFailedError creates a retryable backing-store error.
func NewStoreOperationFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreOperationFailed,
		Message:   "Backing store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification helpers
// ==========================

// GetRetryCount returns how many transport-level retries a code warrants.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePlatformAPIFailed, ErrCodeStoreOperationFailed,
		ErrCodeEntitlementActivationFailed, ErrCodeRefundFailed:
		return 3
	default:
		return 0
	}
}

// GetErrorCategory groups codes by failure domain for logging and metrics.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInitDataValidationFailed, ErrCodeMissingSignature,
		ErrCodeInvalidSignature, ErrCodeMissingUserField:
		return "validation"
	case ErrCodeUserNotLinked:
		return "linkage"
	case ErrCodeAlreadyMember, ErrCodeDuplicatePayment,
		ErrCodeNoActivePayment, ErrCodeNothingToRefund:
		return "payment_state"
	case ErrCodePlatformAPIFailed, ErrCodeEntitlementActivationFailed,
		ErrCodeEntitlementCancelFailed, ErrCodeRefundFailed,
		ErrCodeStoreOperationFailed:
		return "external_service"
	case ErrCodeCheckoutAnswerFailed:
		return "protocol"
	case ErrCodeLinkageMissingAtCapture:
		return "inconsistency"
	default:
		return "internal"
	}
}

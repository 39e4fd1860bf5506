// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"initdata validation", NewInitDataValidationFailedError(cause), ErrCodeInitDataValidationFailed, false},
		{"user not linked", NewUserNotLinkedError(42), ErrCodeUserNotLinked, false},
		{"already member", NewAlreadyMemberError(42), ErrCodeAlreadyMember, false},
		{"duplicate payment", NewDuplicatePaymentError(42), ErrCodeDuplicatePayment, false},
		{"nothing to refund", NewNothingToRefundError(42), ErrCodeNothingToRefund, false},
		{"linkage missing at capture", NewLinkageMissingAtCaptureError(42, "ch_1"), ErrCodeLinkageMissingAtCapture, false},
		{"activation failed", NewEntitlementActivationFailedError(cause), ErrCodeEntitlementActivationFailed, true},
		{"cancel failed", NewEntitlementCancelFailedError(cause), ErrCodeEntitlementCancelFailed, false},
		{"refund failed", NewRefundFailedError(cause), ErrCodeRefundFailed, true},
		{"platform api failed", NewPlatformAPIFailedError("sendMessage", cause), ErrCodePlatformAPIFailed, true},
		{"checkout answer failed", NewCheckoutAnswerFailedError(cause), ErrCodeCheckoutAnswerFailed, false},
		{"store operation failed", NewStoreOperationFailedError("record", cause), ErrCodeStoreOperationFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Message)
			assert.False(t, tt.err.Timestamp.IsZero())
			assert.Contains(t, tt.err.Error(), string(tt.code))
		})
	}
}

func TestLinkageMissingMetadata(t *testing.T) {
	err := NewLinkageMissingAtCaptureError(42, "ch_1")

	assert.Equal(t, int64(42), err.Metadata["telegramUserId"])
	assert.Equal(t, "ch_1", err.Metadata["chargeId"])
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodePlatformAPIFailed))
	assert.Equal(t, 3, GetRetryCount(ErrCodeStoreOperationFailed))
	assert.Equal(t, 3, GetRetryCount(ErrCodeRefundFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeAlreadyMember))
	assert.Equal(t, 0, GetRetryCount(ErrCodeInvalidSignature))
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		category string
	}{
		{ErrCodeInvalidSignature, "validation"},
		{ErrCodeMissingUserField, "validation"},
		{ErrCodeUserNotLinked, "linkage"},
		{ErrCodeAlreadyMember, "payment_state"},
		{ErrCodeNothingToRefund, "payment_state"},
		{ErrCodePlatformAPIFailed, "external_service"},
		{ErrCodeEntitlementCancelFailed, "external_service"},
		{ErrCodeCheckoutAnswerFailed, "protocol"},
		{ErrCodeLinkageMissingAtCapture, "inconsistency"},
		{ErrorCode("SOMETHING_ELSE"), "internal"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.category, GetErrorCategory(tt.code))
		})
	}
}

// internal/membership/store.go
package membership

import (
	"context"
	"errors"
)

var (
	ErrNotLinked        = errors.New("USER_NOT_LINKED")
	ErrAlreadyMember    = errors.New("ALREADY_MEMBER")
	ErrDuplicatePayment = errors.New("DUPLICATE_PAYMENT")
	ErrNoActivePayment  = errors.New("NO_ACTIVE_PAYMENT")
	ErrNothingToRefund  = errors.New("NOTHING_TO_REFUND")

	// ErrLinkageMissing reports a capture for an unlinked user: money has
	// moved but entitlement cannot be attached. Reported, never swallowed.
	ErrLinkageMissing = errors.New("LINKAGE_MISSING_AT_CAPTURE")

	// ErrEntitlementPending reports a committed payment whose website-side
	// activation failed. The ledger entry stays committed.
	ErrEntitlementPending = errors.New("ENTITLEMENT_ACTIVATION_PENDING")
)

// LinkageRegistry maps a Telegram identity to a website account. Link is an
// idempotent last-write-wins upsert; a linkage is never destroyed.
type LinkageRegistry interface {
	Link(ctx context.Context, telegramUserID int64, websiteUserID string) error
	Lookup(ctx context.Context, telegramUserID int64) (string, bool, error)
}

// PaymentLedger records at most one payment per Telegram user. Record fails
// with ErrDuplicatePayment when an entry exists; the check-then-write is a
// single atomic operation per key. Remove fails with ErrNoActivePayment.
type PaymentLedger interface {
	Record(ctx context.Context, rec *PaymentRecord) error
	Get(ctx context.Context, telegramUserID int64) (*PaymentRecord, bool, error)
	Remove(ctx context.Context, telegramUserID int64) error
}

// PlatformPayments is the slice of the Telegram Bot API the orchestrator
// needs: invoice links, pre-checkout answers, and Stars refunds.
type PlatformPayments interface {
	CreateInvoiceLink(ctx context.Context, title, description, payload, currency string, amount int) (string, error)
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error
	RefundStarPayment(ctx context.Context, telegramUserID int64, chargeID string) error
}

// EntitlementClient activates and cancels membership on the website side.
type EntitlementClient interface {
	Activate(ctx context.Context, act Activation) error
	Cancel(ctx context.Context, c Cancellation) error
}

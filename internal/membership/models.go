// internal/membership/models.go
package membership

import "time"

// PaymentRecord is the single active membership payment for a Telegram user.
// At most one record may exist per telegram user at a time; it is created on
// capture and destroyed on refund. Only the orchestrator mutates it.
type PaymentRecord struct {
	TelegramUserID int64     `json:"telegramUserId"`
	WebsiteUserID  string    `json:"websiteUserId"`
	ChargeID       string    `json:"chargeId"`
	Amount         int       `json:"amount"`
	Currency       string    `json:"currency"`
	PaidAt         time.Time `json:"paidAt"`
}

// Status is the read-only view of a user's linkage and payment state.
type Status struct {
	Linked        bool           `json:"linked"`
	WebsiteUserID string         `json:"websiteUserId,omitempty"`
	Payment       *PaymentRecord `json:"payment,omitempty"`
}

// Active reports whether the membership is currently paid.
func (s *Status) Active() bool {
	return s.Payment != nil
}

// Activation carries the payment metadata sent to the website when a
// membership is granted.
type Activation struct {
	WebsiteUserID  string    `json:"userId"`
	TelegramUserID int64     `json:"telegramUserId"`
	ChargeID       string    `json:"chargeId"`
	PaidAt         time.Time `json:"paidAt"`
	Amount         int       `json:"amount"`
	Currency       string    `json:"currency"`
}

// Cancellation carries the identifiers sent to the website when a
// membership is revoked.
type Cancellation struct {
	WebsiteUserID  string `json:"userId"`
	TelegramUserID int64  `json:"telegramUserId"`
	ChargeID       string `json:"chargeId"`
}

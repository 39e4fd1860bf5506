// internal/membership/events.go
package membership

import (
	"context"
	"fmt"
)

// EventKind enumerates the operations the state machine accepts.
type EventKind string

const (
	EventLink            EventKind = "link"
	EventRequestCheckout EventKind = "request_checkout"
	EventApproveCheckout EventKind = "approve_checkout"
	EventCapturePayment  EventKind = "capture_payment"
	EventRefund          EventKind = "refund"
	EventQueryStatus     EventKind = "query_status"
)

// Event is one inbound state machine operation. Fields beyond the kind and
// user id are set only where the kind needs them.
type Event struct {
	Kind           EventKind
	TelegramUserID int64

	WebsiteUserID string // Link
	QueryID       string // ApproveCheckout
	ChargeID      string // CapturePayment
	Currency      string // CapturePayment
	Amount        int    // CapturePayment
}

// EventResult carries the output of a handled event; only the field matching
// the event kind is populated.
type EventResult struct {
	InvoiceLink string
	Payment     *PaymentRecord
	Status      *Status
}

// Handle is the single entry point for event sources. One event is
// processed at a time per telegram user; the per-user serialization lives
// in the individual operations.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) (*EventResult, error) {
	switch ev.Kind {
	case EventLink:
		return &EventResult{}, o.Link(ctx, ev.TelegramUserID, ev.WebsiteUserID)

	case EventRequestCheckout:
		link, err := o.RequestCheckout(ctx, ev.TelegramUserID)
		if err != nil {
			return nil, err
		}
		return &EventResult{InvoiceLink: link}, nil

	case EventApproveCheckout:
		return &EventResult{}, o.ApproveCheckout(ctx, ev.QueryID, ev.TelegramUserID)

	case EventCapturePayment:
		rec, err := o.CapturePayment(ctx, ev.TelegramUserID, ev.ChargeID, ev.Currency, ev.Amount)
		if rec == nil && err != nil {
			return nil, err
		}
		return &EventResult{Payment: rec}, err

	case EventRefund:
		return &EventResult{}, o.Refund(ctx, ev.TelegramUserID)

	case EventQueryStatus:
		st, err := o.Status(ctx, ev.TelegramUserID)
		if err != nil {
			return nil, err
		}
		return &EventResult{Status: st}, nil

	default:
		return nil, fmt.Errorf("unknown event kind: %s", ev.Kind)
	}
}

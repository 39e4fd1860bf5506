// internal/membership/orchestrator.go
package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stars-membership/internal/common/logger"
	"stars-membership/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the single configured membership product. The same price is
// used for the /pay invoice and for generated payment links.
type Config struct {
	Price       int
	Currency    string
	Title       string
	Description string
}

// Orchestrator is the single point of state mutation for linkage and
// payments. Operations for the same telegram user are serialized through a
// keyed lock; the platform and entitlement calls may suspend between events,
// so without the lock two captures could race through the duplicate check.
type Orchestrator struct {
	config      *Config
	linkage     LinkageRegistry
	ledger      PaymentLedger
	payments    PlatformPayments
	entitlement EntitlementClient
	logger      logger.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewOrchestrator(
	config *Config,
	linkage LinkageRegistry,
	ledger PaymentLedger,
	payments PlatformPayments,
	entitlement EntitlementClient,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:      config,
		linkage:     linkage,
		ledger:      ledger,
		payments:    payments,
		entitlement: entitlement,
		logger:      log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		locks:       make(map[int64]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use. Locks are
// never removed; the universe of users is bounded by actual traffic.
func (o *Orchestrator) userLock(telegramUserID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[telegramUserID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[telegramUserID] = lock
	}
	return lock
}

// Link associates a telegram user with a website account. Idempotent,
// last-write-wins.
func (o *Orchestrator) Link(ctx context.Context, telegramUserID int64, websiteUserID string) error {
	lock := o.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.linkage.Link(ctx, telegramUserID, websiteUserID); err != nil {
		return err
	}

	o.logger.Info("linked accounts", map[string]interface{}{
		"telegramUserId": telegramUserID,
		"websiteUserId":  websiteUserID,
	})
	return nil
}

// RequestCheckout creates an invoice link for the configured membership
// product. Requires a linkage and no active payment; mutates no local state
// because the platform payment flow owns the pending checkout.
func (o *Orchestrator) RequestCheckout(ctx context.Context, telegramUserID int64) (string, error) {
	timer := prometheus.NewTimer(metrics.OrchestratorOpDuration.WithLabelValues("request_checkout"))
	defer timer.ObserveDuration()

	lock := o.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	if _, linked, err := o.linkage.Lookup(ctx, telegramUserID); err != nil {
		return "", err
	} else if !linked {
		metrics.CheckoutRejections.WithLabelValues("not_linked").Inc()
		return "", ErrNotLinked
	}

	if _, found, err := o.ledger.Get(ctx, telegramUserID); err != nil {
		return "", err
	} else if found {
		metrics.CheckoutRejections.WithLabelValues("already_member").Inc()
		return "", ErrAlreadyMember
	}

	payload := fmt.Sprintf(`{"telegramUserId":%d,"ref":%q}`, telegramUserID, uuid.NewString())
	link, err := o.payments.CreateInvoiceLink(ctx,
		o.config.Title, o.config.Description, payload, o.config.Currency, o.config.Price)
	if err != nil {
		return "", err
	}

	o.logger.Info("created payment link", map[string]interface{}{
		"telegramUserId": telegramUserID,
	})
	return link, nil
}

// ApproveCheckout answers a pre-checkout query. Policy: approve
// unconditionally; if the approval cannot be delivered the query is answered
// with a denial so the purchase aborts instead of hanging on the platform
// side. An unanswerable query is a protocol failure for this transaction.
func (o *Orchestrator) ApproveCheckout(ctx context.Context, queryID string, telegramUserID int64) error {
	timer := prometheus.NewTimer(metrics.OrchestratorOpDuration.WithLabelValues("approve_checkout"))
	defer timer.ObserveDuration()

	if err := o.payments.AnswerPreCheckoutQuery(ctx, queryID, true, ""); err != nil {
		o.logger.Error("failed to approve pre-checkout query", map[string]interface{}{
			"telegramUserId": telegramUserID,
			"queryId":        queryID,
			"error":          err.Error(),
		})

		denyErr := o.payments.AnswerPreCheckoutQuery(ctx, queryID, false,
			"Payment processing error, please try again")
		if denyErr != nil {
			return fmt.Errorf("checkout query unanswered: approve: %v, deny: %w", err, denyErr)
		}
		return fmt.Errorf("checkout approval failed, denied instead: %w", err)
	}

	o.logger.Info("approved pre-checkout query", map[string]interface{}{
		"telegramUserId": telegramUserID,
		"queryId":        queryID,
	})
	return nil
}

// CapturePayment commits a successful payment to the ledger and activates the
// website entitlement. A missing linkage is a reported inconsistency (money
// moved, nothing to attach it to). If activation fails after the ledger
// commit, the record stays and ErrEntitlementPending is returned together
// with the committed record; there is no local fallback entitlement state.
func (o *Orchestrator) CapturePayment(ctx context.Context, telegramUserID int64, chargeID, currency string, amount int) (*PaymentRecord, error) {
	timer := prometheus.NewTimer(metrics.OrchestratorOpDuration.WithLabelValues("capture_payment"))
	defer timer.ObserveDuration()

	lock := o.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	websiteUserID, linked, err := o.linkage.Lookup(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	if !linked {
		o.logger.Error("payment captured without linkage", map[string]interface{}{
			"telegramUserId": telegramUserID,
			"chargeId":       chargeID,
		})
		return nil, ErrLinkageMissing
	}

	rec := &PaymentRecord{
		TelegramUserID: telegramUserID,
		WebsiteUserID:  websiteUserID,
		ChargeID:       chargeID,
		Amount:         amount,
		Currency:       currency,
		PaidAt:         time.Now().UTC(),
	}

	if err := o.ledger.Record(ctx, rec); err != nil {
		return nil, err
	}
	metrics.PaymentsCaptured.Inc()

	o.logger.Info("payment captured", map[string]interface{}{
		"telegramUserId": telegramUserID,
		"websiteUserId":  websiteUserID,
		"chargeId":       chargeID,
		"amount":         amount,
		"currency":       currency,
	})

	if err := o.entitlement.Activate(ctx, Activation{
		WebsiteUserID:  websiteUserID,
		TelegramUserID: telegramUserID,
		ChargeID:       chargeID,
		PaidAt:         rec.PaidAt,
		Amount:         amount,
		Currency:       currency,
	}); err != nil {
		metrics.EntitlementCallFailures.WithLabelValues("activate").Inc()
		o.logger.Error("entitlement activation failed, payment stays committed", map[string]interface{}{
			"telegramUserId": telegramUserID,
			"websiteUserId":  websiteUserID,
			"chargeId":       chargeID,
			"error":          err.Error(),
		})
		return rec, fmt.Errorf("%w: %v", ErrEntitlementPending, err)
	}

	o.logger.Info("membership activated", map[string]interface{}{
		"telegramUserId": telegramUserID,
		"websiteUserId":  websiteUserID,
	})
	return rec, nil
}

// Refund returns the user's Stars, cancels the website entitlement and
// removes the ledger entry, strictly in that order. A platform refund
// failure aborts before any state mutation. A cancel failure after a
// successful refund leaves the ledger entry intact and is surfaced for
// out-of-band reconciliation.
func (o *Orchestrator) Refund(ctx context.Context, telegramUserID int64) error {
	timer := prometheus.NewTimer(metrics.OrchestratorOpDuration.WithLabelValues("refund"))
	defer timer.ObserveDuration()

	lock := o.userLock(telegramUserID)
	lock.Lock()
	defer lock.Unlock()

	rec, found, err := o.ledger.Get(ctx, telegramUserID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNothingToRefund
	}

	if err := o.payments.RefundStarPayment(ctx, telegramUserID, rec.ChargeID); err != nil {
		return fmt.Errorf("platform refund failed: %w", err)
	}

	if err := o.entitlement.Cancel(ctx, Cancellation{
		WebsiteUserID:  rec.WebsiteUserID,
		TelegramUserID: telegramUserID,
		ChargeID:       rec.ChargeID,
	}); err != nil {
		metrics.EntitlementCallFailures.WithLabelValues("cancel").Inc()
		o.logger.Error("funds returned but entitlement cancel failed", map[string]interface{}{
			"telegramUserId": telegramUserID,
			"websiteUserId":  rec.WebsiteUserID,
			"chargeId":       rec.ChargeID,
			"error":          err.Error(),
		})
		return fmt.Errorf("entitlement cancel failed after refund: %w", err)
	}

	if err := o.ledger.Remove(ctx, telegramUserID); err != nil {
		return err
	}
	metrics.PaymentsRefunded.Inc()

	o.logger.Info("refund processed", map[string]interface{}{
		"telegramUserId": telegramUserID,
		"chargeId":       rec.ChargeID,
	})
	return nil
}

// Status returns the read-only linkage and payment view for a user.
func (o *Orchestrator) Status(ctx context.Context, telegramUserID int64) (*Status, error) {
	websiteUserID, linked, err := o.linkage.Lookup(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return &Status{Linked: false}, nil
	}

	rec, _, err := o.ledger.Get(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	return &Status{
		Linked:        true,
		WebsiteUserID: websiteUserID,
		Payment:       rec,
	}, nil
}

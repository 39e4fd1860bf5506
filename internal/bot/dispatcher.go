// internal/bot/dispatcher.go

// Package bot routes long-polled Telegram updates to the membership
// orchestrator and renders the user-facing replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stars-membership/internal/common/logger"
	"stars-membership/internal/common/observability"
	"stars-membership/internal/membership"
	"stars-membership/internal/telegram"
)

// BotAPI is the slice of the Telegram client the dispatcher drives.
type BotAPI interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendInvoice(ctx context.Context, chatID int64, title, description, payload, currency string, amount int) error
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
}

// Service is the orchestrator's event entry point: the dispatcher feeds it
// one event at a time.
type Service interface {
	Handle(ctx context.Context, ev membership.Event) (*membership.EventResult, error)
}

type Dispatcher struct {
	api         BotAPI
	service     Service
	product     *membership.Config
	pollTimeout int
	obs         *observability.Observability
	logger      logger.Logger
}

func NewDispatcher(api BotAPI, service Service, product *membership.Config, pollTimeout int, obs *observability.Observability, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		api:         api,
		service:     service,
		product:     product,
		pollTimeout: pollTimeout,
		obs:         obs,
		logger:      log.WithFields(map[string]interface{}{"component": "bot"}),
	}
}

// Run long-polls until the context is cancelled. Updates are processed in
// order; a failed handler logs and moves on so the offset keeps advancing.
func (d *Dispatcher) Run(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := d.api.GetUpdates(ctx, offset, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("poll failed", map[string]interface{}{"error": err.Error()})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			d.HandleUpdate(ctx, update)
			offset = update.UpdateID + 1
		}
	}
}

// HandleUpdate routes one update. Exported so webhook-style transports can
// feed the same dispatcher.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update telegram.Update) {
	started := time.Now()
	var kind string

	switch {
	case update.PreCheckoutQuery != nil:
		kind = "pre_checkout"
		d.handlePreCheckout(ctx, update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		kind = "payment"
		d.handleSuccessfulPayment(ctx, update.Message)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		kind = "command"
		d.handleCommand(ctx, update.Message)
	default:
		return
	}

	if d.obs != nil {
		d.obs.RecordEventProcessed(ctx, kind, "processed")
		d.obs.RecordEventDuration(ctx, time.Since(started), kind)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}

	command, arg := splitCommand(msg.Text)
	switch command {
	case "/start":
		d.handleStart(ctx, msg, arg)
	case "/pay":
		d.handlePay(ctx, msg)
	case "/getlink":
		d.handleGetLink(ctx, msg)
	case "/status":
		d.handleStatus(ctx, msg)
	case "/refund":
		d.handleRefund(ctx, msg)
	default:
		d.reply(ctx, msg.Chat.ID, "Unknown command. Available: /pay, /getlink, /status, /refund")
	}
}

// splitCommand separates "/cmd@bot arg" into the bare command and its
// argument.
func splitCommand(text string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	command := parts[0]
	if at := strings.Index(command, "@"); at != -1 {
		command = command[:at]
	}
	if len(parts) == 2 {
		return command, strings.TrimSpace(parts[1])
	}
	return command, ""
}

// handleStart links the account when a deep-link payload carries the website
// user id, otherwise it greets.
func (d *Dispatcher) handleStart(ctx context.Context, msg *telegram.Message, arg string) {
	if arg == "" {
		d.reply(ctx, msg.Chat.ID,
			"Welcome! Open this bot through the website to connect your account, then use /pay to purchase membership.")
		return
	}

	_, err := d.service.Handle(ctx, membership.Event{
		Kind:           membership.EventLink,
		TelegramUserID: msg.From.ID,
		WebsiteUserID:  arg,
	})
	if err != nil {
		d.logger.Error("link failed", map[string]interface{}{
			"telegramUserId": msg.From.ID,
			"error":          err.Error(),
		})
		d.reply(ctx, msg.Chat.ID, "Could not connect your account, please try again.")
		return
	}
	d.reply(ctx, msg.Chat.ID, "Your account is connected. Use /pay to purchase membership.")
}

func (d *Dispatcher) handlePay(ctx context.Context, msg *telegram.Message) {
	st, err := d.checkPayable(ctx, msg)
	if err != nil || st == nil {
		return
	}

	payload := fmt.Sprintf(`{"telegramUserId":%d}`, msg.From.ID)
	err = d.api.SendInvoice(ctx, msg.Chat.ID,
		d.product.Title, d.product.Description, payload, d.product.Currency, d.product.Price)
	if err != nil {
		d.logger.Error("invoice send failed", map[string]interface{}{
			"telegramUserId": msg.From.ID,
			"error":          err.Error(),
		})
		d.reply(ctx, msg.Chat.ID, "Could not create the invoice, please try again later.")
	}
}

func (d *Dispatcher) handleGetLink(ctx context.Context, msg *telegram.Message) {
	res, err := d.service.Handle(ctx, membership.Event{
		Kind:           membership.EventRequestCheckout,
		TelegramUserID: msg.From.ID,
	})
	if err != nil {
		d.replyCheckoutError(ctx, msg.Chat.ID, err)
		return
	}
	d.reply(ctx, msg.Chat.ID, "Your payment link: "+res.InvoiceLink)
}

// checkPayable applies the same preconditions as RequestCheckout for the
// in-chat invoice path.
func (d *Dispatcher) checkPayable(ctx context.Context, msg *telegram.Message) (*membership.Status, error) {
	st, err := d.queryStatus(ctx, msg.From.ID)
	if err != nil {
		d.logger.Error("status lookup failed", map[string]interface{}{
			"telegramUserId": msg.From.ID,
			"error":          err.Error(),
		})
		d.reply(ctx, msg.Chat.ID, "Something went wrong, please try again later.")
		return nil, err
	}
	if !st.Linked {
		d.reply(ctx, msg.Chat.ID, "Connect your website account first by opening this bot through the website.")
		return nil, membership.ErrNotLinked
	}
	if st.Active() {
		d.reply(ctx, msg.Chat.ID, "You already have an active membership. Use /refund if you want to cancel it.")
		return nil, membership.ErrAlreadyMember
	}
	return st, nil
}

func (d *Dispatcher) queryStatus(ctx context.Context, telegramUserID int64) (*membership.Status, error) {
	res, err := d.service.Handle(ctx, membership.Event{
		Kind:           membership.EventQueryStatus,
		TelegramUserID: telegramUserID,
	})
	if err != nil {
		return nil, err
	}
	return res.Status, nil
}

func (d *Dispatcher) handleStatus(ctx context.Context, msg *telegram.Message) {
	st, err := d.queryStatus(ctx, msg.From.ID)
	if err != nil {
		d.reply(ctx, msg.Chat.ID, "Something went wrong, please try again later.")
		return
	}

	switch {
	case !st.Linked:
		d.reply(ctx, msg.Chat.ID, "Your account is not connected yet. Open this bot through the website to connect it.")
	case st.Active():
		d.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"Membership active since %s (%d %s).",
			st.Payment.PaidAt.Format("2 Jan 2006"), st.Payment.Amount, st.Payment.Currency))
	default:
		d.reply(ctx, msg.Chat.ID, "Your account is connected but you have no active membership. Use /pay to purchase one.")
	}
}

func (d *Dispatcher) handleRefund(ctx context.Context, msg *telegram.Message) {
	_, err := d.service.Handle(ctx, membership.Event{
		Kind:           membership.EventRefund,
		TelegramUserID: msg.From.ID,
	})
	switch {
	case err == nil:
		d.reply(ctx, msg.Chat.ID, "Your payment was refunded and the membership cancelled.")
	case errors.Is(err, membership.ErrNothingToRefund):
		d.reply(ctx, msg.Chat.ID, "You have no payment to refund.")
	default:
		d.logger.Error("refund failed", map[string]interface{}{
			"telegramUserId": msg.From.ID,
			"error":          err.Error(),
		})
		d.reply(ctx, msg.Chat.ID, "The refund could not be completed, please try again later.")
	}
}

func (d *Dispatcher) handlePreCheckout(ctx context.Context, query *telegram.PreCheckoutQuery) {
	_, err := d.service.Handle(ctx, membership.Event{
		Kind:           membership.EventApproveCheckout,
		TelegramUserID: query.From.ID,
		QueryID:        query.ID,
	})
	if err != nil {
		d.logger.Error("pre-checkout handling failed", map[string]interface{}{
			"telegramUserId": query.From.ID,
			"queryId":        query.ID,
			"error":          err.Error(),
		})
	}
}

func (d *Dispatcher) handleSuccessfulPayment(ctx context.Context, msg *telegram.Message) {
	payment := msg.SuccessfulPayment
	_, err := d.service.Handle(ctx, membership.Event{
		Kind:           membership.EventCapturePayment,
		TelegramUserID: msg.From.ID,
		ChargeID:       payment.TelegramPaymentChargeID,
		Currency:       payment.Currency,
		Amount:         payment.TotalAmount,
	})

	switch {
	case err == nil:
		d.reply(ctx, msg.Chat.ID, "Payment received, your membership is now active. Thank you!")
	case errors.Is(err, membership.ErrEntitlementPending):
		d.reply(ctx, msg.Chat.ID,
			"Payment received. Activating your membership is taking longer than usual; it will be ready shortly.")
	case errors.Is(err, membership.ErrDuplicatePayment):
		d.reply(ctx, msg.Chat.ID, "This payment was already processed.")
	default:
		d.logger.Error("payment capture failed", map[string]interface{}{
			"telegramUserId": msg.From.ID,
			"chargeId":       payment.TelegramPaymentChargeID,
			"error":          err.Error(),
		})
		d.reply(ctx, msg.Chat.ID,
			"Payment received but something went wrong on our side. Support has been notified.")
	}
}

func (d *Dispatcher) replyCheckoutError(ctx context.Context, chatID int64, err error) {
	switch {
	case errors.Is(err, membership.ErrNotLinked):
		d.reply(ctx, chatID, "Connect your website account first by opening this bot through the website.")
	case errors.Is(err, membership.ErrAlreadyMember):
		d.reply(ctx, chatID, "You already have an active membership. Use /refund if you want to cancel it.")
	default:
		d.reply(ctx, chatID, "Could not create the payment link, please try again later.")
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.api.SendMessage(ctx, chatID, text); err != nil {
		d.logger.Warn("reply failed", map[string]interface{}{
			"chatId": chatID,
			"error":  err.Error(),
		})
	}
}

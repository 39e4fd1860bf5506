// internal/telegram/client.go

// Package telegram is a minimal Bot API client covering the methods this
// service needs: messaging, invoice links, pre-checkout answers, Stars
// refunds and long polling.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stars-membership/internal/common/config"
	"stars-membership/internal/common/logger"
	"stars-membership/internal/common/metrics"
	"stars-membership/internal/membership"
)

var _ membership.PlatformPayments = (*Client)(nil)

// starsCurrency is the only currency Stars payments settle in. Invoices in
// this currency take no provider token and a single price line.
const starsCurrency = "XTR"

type Client struct {
	botToken   string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	pollClient *http.Client
	logger     logger.Logger
}

func NewClient(cfg *config.TelegramConfig, log logger.Logger) *Client {
	requestTimeout := config.GetDuration(cfg.RequestTimeout)
	return &Client{
		botToken:   cfg.BotToken,
		baseURL:    cfg.APIBaseURL,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		// long polls hold the connection for the poll window, so that
		// client gets the window on top of the request timeout
		pollClient: &http.Client{
			Timeout: requestTimeout + time.Duration(cfg.PollTimeout)*time.Second,
		},
		logger: log.WithFields(map[string]interface{}{"component": "telegram"}),
	}
}

// call POSTs one Bot API method and returns the raw result. The bot token
// only ever appears in the URL path, never in logs or errors.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)

	jsonData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, retryable, err := c.doCall(ctx, method, url, jsonData, c.httpClient)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("retrying bot api call", map[string]interface{}{
			"method":  method,
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	metrics.PlatformAPIFailures.WithLabelValues(method).Inc()
	return nil, lastErr
}

func (c *Client) doCall(ctx context.Context, method, url string, jsonData []byte, httpClient *http.Client) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to execute %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !envelope.OK {
		retryable := envelope.ErrorCode == http.StatusTooManyRequests || envelope.ErrorCode >= 500
		return nil, retryable, fmt.Errorf("%s failed (code %d): %s", method, envelope.ErrorCode, envelope.Description)
	}

	return envelope.Result, false, nil
}

// SendMessage delivers a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}

// SendInvoice posts a Stars invoice directly into a chat.
func (c *Client) SendInvoice(ctx context.Context, chatID int64, title, description, payload, currency string, amount int) error {
	if currency != starsCurrency {
		return fmt.Errorf("unsupported invoice currency: %s", currency)
	}

	_, err := c.call(ctx, "sendInvoice", map[string]interface{}{
		"chat_id":     chatID,
		"title":       title,
		"description": description,
		"payload":     payload,
		"currency":    currency,
		"prices":      []LabeledPrice{{Label: title, Amount: amount}},
	})
	return err
}

// CreateInvoiceLink returns a shareable payment URL for the product.
func (c *Client) CreateInvoiceLink(ctx context.Context, title, description, payload, currency string, amount int) (string, error) {
	if currency != starsCurrency {
		return "", fmt.Errorf("unsupported invoice currency: %s", currency)
	}

	result, err := c.call(ctx, "createInvoiceLink", map[string]interface{}{
		"title":       title,
		"description": description,
		"payload":     payload,
		"currency":    currency,
		"prices":      []LabeledPrice{{Label: title, Amount: amount}},
	})
	if err != nil {
		return "", err
	}

	var link string
	if err := json.Unmarshal(result, &link); err != nil {
		return "", fmt.Errorf("failed to unmarshal invoice link: %w", err)
	}
	return link, nil
}

// AnswerPreCheckoutQuery confirms or rejects a pending checkout. The
// platform gives ten seconds to answer, so this call is never retried.
func (c *Client) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	params := map[string]interface{}{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	if !ok {
		params["error_message"] = errorMessage
	}

	url := fmt.Sprintf("%s/bot%s/answerPreCheckoutQuery", c.baseURL, c.botToken)
	jsonData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal answerPreCheckoutQuery params: %w", err)
	}
	_, _, callErr := c.doCall(ctx, "answerPreCheckoutQuery", url, jsonData, c.httpClient)
	if callErr != nil {
		metrics.PlatformAPIFailures.WithLabelValues("answerPreCheckoutQuery").Inc()
	}
	return callErr
}

// RefundStarPayment returns a completed Stars payment to the user.
func (c *Client) RefundStarPayment(ctx context.Context, telegramUserID int64, chargeID string) error {
	_, err := c.call(ctx, "refundStarPayment", map[string]interface{}{
		"user_id":                    telegramUserID,
		"telegram_payment_charge_id": chargeID,
	})
	return err
}

// GetUpdates long-polls for new events starting at offset. timeout is the
// server-side hold in seconds. No retry here; the poll loop is the retry.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates", c.baseURL, c.botToken)
	jsonData, err := json.Marshal(map[string]interface{}{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message", "pre_checkout_query"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal getUpdates params: %w", err)
	}

	result, _, err := c.doCall(ctx, "getUpdates", url, jsonData, c.pollClient)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}
	return updates, nil
}

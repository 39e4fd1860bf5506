// internal/entitlement/client.go

// Package entitlement talks to the website membership API. The website owns
// the entitlement state; this service only asks it to flip.
package entitlement

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
	"stars-membership/internal/membership"
)

var _ membership.EntitlementClient = (*Client)(nil)

type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(cfg *config.EntitlementConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		logger: log.WithFields(map[string]interface{}{"component": "entitlement"}),
	}
}

// Activate grants the website membership tied to a captured payment.
func (c *Client) Activate(ctx context.Context, act membership.Activation) error {
	return c.post(ctx, "/api/set-membership", act)
}

// Cancel revokes the website membership after a refund.
func (c *Client) Cancel(ctx context.Context, cancel membership.Cancellation) error {
	return c.post(ctx, "/api/cancel-membership", cancel)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", path, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			c.logger.Warn("retrying entitlement call", map[string]interface{}{
				"path":    path,
				"attempt": attempt + 1,
			})
		}

		retryable, err := c.doPost(ctx, path, jsonData)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return lastErr
}

func (c *Client) doPost(ctx context.Context, path string, jsonData []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return false, fmt.Errorf("failed to create %s request: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to execute %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retryable, fmt.Errorf("%s failed (status %d): %s", path, resp.StatusCode, string(body))
	}

	return false, nil
}

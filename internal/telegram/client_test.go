// internal/telegram/client_test.go
package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"stars-membership/internal/common/config"
	"stars-membership/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(&config.TelegramConfig{
		BotToken:       "123456:test-token",
		APIBaseURL:     server.URL,
		RequestTimeout: 5000,
		MaxRetries:     2,
		PollTimeout:    1,
	}, logger.NewTestLogger(t))
	return client, server
}

func writeResult(t *testing.T, w http.ResponseWriter, result interface{}) {
	t.Helper()
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	err = json.NewEncoder(w).Encode(apiResponse{OK: true, Result: raw})
	require.NoError(t, err)
}

// ==========================================
// METHOD TESTS
// ==========================================

func TestClientCreateInvoiceLink(t *testing.T) {
	t.Run("returns the link from the envelope", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]interface{}
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			writeResult(t, w, "https://t.me/invoice/abc")
		})

		link, err := client.CreateInvoiceLink(context.Background(),
			"Membership", "Access to premium features", `{"telegramUserId":42}`, "XTR", 100)

		require.NoError(t, err)
		assert.Equal(t, "https://t.me/invoice/abc", link)
		assert.Equal(t, "/bot123456:test-token/createInvoiceLink", gotPath)
		assert.Equal(t, "XTR", gotBody["currency"])
		prices, ok := gotBody["prices"].([]interface{})
		require.True(t, ok)
		require.Len(t, prices, 1)
	})

	t.Run("rejects non-stars currency without a request", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		})

		_, err := client.CreateInvoiceLink(context.Background(), "Membership", "d", "p", "USD", 100)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported invoice currency")
		assert.Zero(t, atomic.LoadInt32(&calls))
	})

	t.Run("api error surfaces the description", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(apiResponse{
				OK: false, ErrorCode: 400, Description: "PAYLOAD_INVALID",
			})
		})

		_, err := client.CreateInvoiceLink(context.Background(), "Membership", "d", "p", "XTR", 100)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "PAYLOAD_INVALID")
	})
}

func TestClientAnswerPreCheckoutQuery(t *testing.T) {
	t.Run("approval omits the error message", func(t *testing.T) {
		var gotBody map[string]interface{}
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			writeResult(t, w, true)
		})

		require.NoError(t, client.AnswerPreCheckoutQuery(context.Background(), "q1", true, ""))

		assert.Equal(t, "q1", gotBody["pre_checkout_query_id"])
		assert.Equal(t, true, gotBody["ok"])
		assert.NotContains(t, gotBody, "error_message")
	})

	t.Run("denial carries the reason", func(t *testing.T) {
		var gotBody map[string]interface{}
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			writeResult(t, w, true)
		})

		require.NoError(t, client.AnswerPreCheckoutQuery(context.Background(), "q1", false, "out of stock"))

		assert.Equal(t, false, gotBody["ok"])
		assert.Equal(t, "out of stock", gotBody["error_message"])
	})

	t.Run("answer is never retried", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_ = json.NewEncoder(w).Encode(apiResponse{OK: false, ErrorCode: 500, Description: "internal"})
		})

		err := client.AnswerPreCheckoutQuery(context.Background(), "q1", true, "")

		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestClientRefundStarPayment(t *testing.T) {
	t.Run("sends user and charge id", func(t *testing.T) {
		var gotBody map[string]interface{}
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/refundStarPayment"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			writeResult(t, w, true)
		})

		require.NoError(t, client.RefundStarPayment(context.Background(), 42, "ch_1"))

		assert.Equal(t, float64(42), gotBody["user_id"])
		assert.Equal(t, "ch_1", gotBody["telegram_payment_charge_id"])
	})
}

func TestClientGetUpdates(t *testing.T) {
	t.Run("decodes updates and forwards the offset", func(t *testing.T) {
		var gotBody map[string]interface{}
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			writeResult(t, w, []Update{
				{UpdateID: 7, Message: &Message{Text: "/start", Chat: Chat{ID: 42}}},
				{UpdateID: 8, PreCheckoutQuery: &PreCheckoutQuery{ID: "q1", From: User{ID: 42}}},
			})
		})

		updates, err := client.GetUpdates(context.Background(), 7, 1)

		require.NoError(t, err)
		require.Len(t, updates, 2)
		assert.Equal(t, int64(7), updates[0].UpdateID)
		assert.Equal(t, "/start", updates[0].Message.Text)
		assert.Equal(t, "q1", updates[1].PreCheckoutQuery.ID)
		assert.Equal(t, float64(7), gotBody["offset"])
	})
}

// ==========================================
// RETRY TESTS
// ==========================================

func TestClientRetries(t *testing.T) {
	t.Run("server errors are retried until success", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				_ = json.NewEncoder(w).Encode(apiResponse{OK: false, ErrorCode: 502, Description: "bad gateway"})
				return
			}
			writeResult(t, w, true)
		})

		err := client.SendMessage(context.Background(), 42, "hello")

		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_ = json.NewEncoder(w).Encode(apiResponse{OK: false, ErrorCode: 403, Description: "bot was blocked by the user"})
		})

		err := client.SendMessage(context.Background(), 42, "hello")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "blocked")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("retries stop after the configured maximum", func(t *testing.T) {
		var calls int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_ = json.NewEncoder(w).Encode(apiResponse{OK: false, ErrorCode: 429, Description: "too many requests"})
		})

		err := client.SendMessage(context.Background(), 42, "hello")

		require.Error(t, err)
		// initial attempt plus MaxRetries
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}

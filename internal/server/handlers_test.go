// internal/server/handlers_test.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"stars-membership/internal/common/logger"
	"stars-membership/internal/initdata"
	"stars-membership/internal/membership"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:test-bot-token"

// ==========================================
// TEST DOUBLES
// ==========================================

type fakePayments struct {
	invoiceLink string
	invoiceErr  error
}

func (f *fakePayments) CreateInvoiceLink(_ context.Context, _, _, _, _ string, _ int) (string, error) {
	return f.invoiceLink, f.invoiceErr
}

func (f *fakePayments) AnswerPreCheckoutQuery(_ context.Context, _ string, _ bool, _ string) error {
	return nil
}

func (f *fakePayments) RefundStarPayment(_ context.Context, _ int64, _ string) error {
	return nil
}

type noopEntitlement struct{}

func (noopEntitlement) Activate(_ context.Context, _ membership.Activation) error { return nil }
func (noopEntitlement) Cancel(_ context.Context, _ membership.Cancellation) error { return nil }

type fixture struct {
	handlers *Handlers
	orch     *membership.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	orch := membership.NewOrchestrator(
		&membership.Config{Price: 100, Currency: "XTR", Title: "Membership", Description: "Access to premium features"},
		membership.NewMemoryLinkageRegistry(),
		membership.NewMemoryPaymentLedger(),
		&fakePayments{invoiceLink: "https://t.me/invoice/abc"},
		noopEntitlement{},
		logger.NewTestLogger(t),
	)
	return &fixture{
		handlers: NewHandlers(orch, testBotToken, func() bool { return true }, logger.NewTestLogger(t)),
		orch:     orch,
	}
}

// signedInitData builds a valid raw initData payload for user 42.
func signedInitData(t *testing.T) string {
	t.Helper()
	params := url.Values{}
	params.Set("auth_date", "1717243200")
	params.Set("user", `{"id":42,"first_name":"Ada","username":"ada42"}`)
	params.Set("hash", initdata.Sign(params, testBotToken))
	return params.Encode()
}

func doJSON(t *testing.T, handler echo.HandlerFunc, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

// ==========================================
// VALIDATE USER TESTS
// ==========================================

func TestValidateUser(t *testing.T) {
	t.Run("valid payload returns the identity", func(t *testing.T) {
		f := newFixture(t)

		rec, resp := doJSON(t, f.handlers.ValidateUser, "/api/validate-user",
			validateUserRequest{InitData: signedInitData(t)})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, resp["success"])

		user := resp["user"].(map[string]interface{})
		assert.Equal(t, float64(42), user["id"])
		assert.Equal(t, "Ada", user["firstName"])
		assert.Equal(t, "inactive", user["membershipStatus"])
		assert.Nil(t, user["membershipInfo"])
	})

	t.Run("membership state is reflected after capture", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.orch.Link(context.Background(), 42, "site-7"))
		_, err := f.orch.CapturePayment(context.Background(), 42, "ch_1", "XTR", 100)
		require.NoError(t, err)

		rec, resp := doJSON(t, f.handlers.ValidateUser, "/api/validate-user",
			validateUserRequest{InitData: signedInitData(t)})

		assert.Equal(t, http.StatusOK, rec.Code)
		user := resp["user"].(map[string]interface{})
		assert.Equal(t, "active", user["membershipStatus"])
		assert.Equal(t, "site-7", user["websiteUserId"])
		assert.NotNil(t, user["membershipInfo"])
	})

	t.Run("missing initData", func(t *testing.T) {
		f := newFixture(t)

		rec, resp := doJSON(t, f.handlers.ValidateUser, "/api/validate-user",
			validateUserRequest{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, resp["success"])
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		f := newFixture(t)
		params, err := url.ParseQuery(signedInitData(t))
		require.NoError(t, err)
		params.Set("auth_date", "1717243201")

		rec, resp := doJSON(t, f.handlers.ValidateUser, "/api/validate-user",
			validateUserRequest{InitData: params.Encode()})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, resp["success"])
	})
}

// ==========================================
// CREATE PAYMENT LINK TESTS
// ==========================================

func TestCreatePaymentLink(t *testing.T) {
	t.Run("links the accounts and returns the invoice link", func(t *testing.T) {
		f := newFixture(t)

		rec, resp := doJSON(t, f.handlers.CreatePaymentLink, "/api/create-payment-link",
			createPaymentLinkRequest{InitData: signedInitData(t), WebsiteUserID: "site-7"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, resp["success"])

		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "https://t.me/invoice/abc", data["paymentLink"])

		st, err := f.orch.Status(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, st.Linked)
		assert.Equal(t, "site-7", st.WebsiteUserID)
	})

	t.Run("missing parameters", func(t *testing.T) {
		f := newFixture(t)

		rec, _ := doJSON(t, f.handlers.CreatePaymentLink, "/api/create-payment-link",
			createPaymentLinkRequest{InitData: signedInitData(t)})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid signature is rejected before linking", func(t *testing.T) {
		f := newFixture(t)
		params, err := url.ParseQuery(signedInitData(t))
		require.NoError(t, err)
		params.Set("hash", strings.Repeat("0", 64))

		rec, _ := doJSON(t, f.handlers.CreatePaymentLink, "/api/create-payment-link",
			createPaymentLinkRequest{InitData: params.Encode(), WebsiteUserID: "site-7"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		st, statusErr := f.orch.Status(context.Background(), 42)
		require.NoError(t, statusErr)
		assert.False(t, st.Linked, "no linkage without a valid signature")
	})

	t.Run("active membership blocks a new link", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.orch.Link(context.Background(), 42, "site-7"))
		_, err := f.orch.CapturePayment(context.Background(), 42, "ch_1", "XTR", 100)
		require.NoError(t, err)

		rec, resp := doJSON(t, f.handlers.CreatePaymentLink, "/api/create-payment-link",
			createPaymentLinkRequest{InitData: signedInitData(t), WebsiteUserID: "site-7"})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, false, resp["success"])
	})
}

// ==========================================
// HEALTH TESTS
// ==========================================

func TestHealth(t *testing.T) {
	f := newFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, f.handlers.Health(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp["botRunning"])
	assert.NotEmpty(t, resp["timestamp"])
}

// internal/server/handlers.go
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	apperrors "stars-membership/internal/common/errors"
	"stars-membership/internal/common/logger"
	"stars-membership/internal/common/metrics"
	"stars-membership/internal/initdata"
	"stars-membership/internal/membership"

	"github.com/labstack/echo/v4"
)

// MembershipService is the slice of the orchestrator the HTTP API drives.
type MembershipService interface {
	Link(ctx context.Context, telegramUserID int64, websiteUserID string) error
	RequestCheckout(ctx context.Context, telegramUserID int64) (string, error)
	Status(ctx context.Context, telegramUserID int64) (*membership.Status, error)
}

type Handlers struct {
	service    MembershipService
	botToken   string
	botRunning func() bool
	logger     logger.Logger
}

func NewHandlers(service MembershipService, botToken string, botRunning func() bool, log logger.Logger) *Handlers {
	return &Handlers{
		service:    service,
		botToken:   botToken,
		botRunning: botRunning,
		logger:     log.WithFields(map[string]interface{}{"component": "handlers"}),
	}
}

type validateUserRequest struct {
	InitData string `json:"initData"`
}

type createPaymentLinkRequest struct {
	InitData      string `json:"initData"`
	WebsiteUserID string `json:"websiteUserId"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, errorResponse{Success: false, Error: message})
}

// failStandard renders a structured application error so Mini App clients
// can branch on the code instead of parsing messages.
func failStandard(c echo.Context, status int, stdErr *apperrors.StandardError) error {
	return c.JSON(status, errorResponse{
		Success:   false,
		Error:     stdErr.Message,
		Code:      string(stdErr.Code),
		Retryable: stdErr.Retryable,
	})
}

// validateIdentity runs signature validation plus user extraction and tracks
// the outcome. The raw payload and token never reach the logs.
func (h *Handlers) validateIdentity(raw string) (*initdata.UserIdentity, error) {
	data, err := initdata.Validate(raw, h.botToken)
	if err != nil {
		metrics.InitDataValidations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	user, err := initdata.ExtractUser(data)
	if err != nil {
		metrics.InitDataValidations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.InitDataValidations.WithLabelValues("accepted").Inc()
	return user, nil
}

// ValidateUser authenticates a Mini App payload and returns the identity
// with its current membership state.
func (h *Handlers) ValidateUser(c echo.Context) error {
	var req validateUserRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.InitData == "" {
		return fail(c, http.StatusBadRequest, "initData is required")
	}

	user, err := h.validateIdentity(req.InitData)
	if err != nil {
		stdErr := apperrors.NewInitDataValidationFailedError(err)
		h.logger.Warn("identity validation rejected", map[string]interface{}{
			"category": apperrors.GetErrorCategory(stdErr.Code),
			"error":    err.Error(),
		})
		return failStandard(c, http.StatusBadRequest, stdErr)
	}

	st, err := h.service.Status(c.Request().Context(), user.ID)
	if err != nil {
		h.logger.Error("status lookup failed", map[string]interface{}{
			"telegramUserId": user.ID,
			"error":          err.Error(),
		})
		return fail(c, http.StatusInternalServerError, "internal error")
	}

	status := "inactive"
	if st.Active() {
		status = "active"
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"user": map[string]interface{}{
			"id":               user.ID,
			"firstName":        user.FirstName,
			"lastName":         user.LastName,
			"username":         user.Username,
			"languageCode":     user.LanguageCode,
			"isPremium":        user.IsPremium,
			"websiteUserId":    st.WebsiteUserID,
			"membershipStatus": status,
			"membershipInfo":   st.Payment,
		},
	})
}

// CreatePaymentLink authenticates the payload, links the accounts and
// returns an invoice link for the membership product.
func (h *Handlers) CreatePaymentLink(c echo.Context) error {
	var req createPaymentLinkRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.InitData == "" || req.WebsiteUserID == "" {
		return fail(c, http.StatusBadRequest, "Missing required parameters")
	}

	user, err := h.validateIdentity(req.InitData)
	if err != nil {
		return failStandard(c, http.StatusBadRequest, apperrors.NewInitDataValidationFailedError(err))
	}

	ctx := c.Request().Context()
	if err := h.service.Link(ctx, user.ID, req.WebsiteUserID); err != nil {
		h.logger.Error("link failed", map[string]interface{}{
			"telegramUserId": user.ID,
			"error":          err.Error(),
		})
		return fail(c, http.StatusInternalServerError, "internal error")
	}

	link, err := h.service.RequestCheckout(ctx, user.ID)
	if err != nil {
		if stderrors.Is(err, membership.ErrAlreadyMember) {
			return failStandard(c, http.StatusConflict, apperrors.NewAlreadyMemberError(user.ID))
		}
		h.logger.Error("payment link creation failed", map[string]interface{}{
			"telegramUserId": user.ID,
			"error":          err.Error(),
		})
		return fail(c, http.StatusBadGateway, "could not create payment link")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"paymentLink": link,
			"userInfo":    user,
		},
	})
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"botRunning": h.botRunning(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

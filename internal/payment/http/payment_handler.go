// Package http provides HTTP handlers for payment reconciliation: the
// order webhook endpoint and the payment status check endpoint.
package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/goformed/backoffice/internal/httputil"
	"github.com/goformed/backoffice/internal/payment/http/dto"
	"github.com/goformed/backoffice/internal/payment/usecase"
)

// SignatureHeader carries the webhook payload signature.
const SignatureHeader = "X-Shopify-Hmac-Sha256"

// EventTypeHeader carries the webhook topic.
const EventTypeHeader = "X-Shopify-Topic"

// WebhookProcessor verifies and reconciles order webhook deliveries.
type WebhookProcessor interface {
	ProcessOrderEvent(ctx context.Context, eventType string, rawBody []byte, signature string) (*usecase.WebhookResult, error)
}

// StatusChecker performs on-demand payment status checks and manages
// background polling.
type StatusChecker interface {
	CheckNow(ctx context.Context, requestID uuid.UUID, force bool) (*usecase.CheckResult, error)
	StartPolling(ctx context.Context, requestID uuid.UUID) error
}

// PaymentHandler handles HTTP requests for payment operations.
type PaymentHandler struct {
	webhook WebhookProcessor
	checker StatusChecker
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(webhook WebhookProcessor, checker StatusChecker, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		webhook: webhook,
		checker: checker,
		logger:  logger,
	}
}

// WebhookHandler receives order webhook deliveries.
// POST /v1/webhooks/orders
// The raw body is read before any parsing so the signature covers the exact
// bytes received. OPTIONS preflights are answered by WebhookPreflightHandler.
// Responses: 401 on signature failure, 200 for every classified outcome,
// 500 when the payment write fails.
func (h *PaymentHandler) WebhookHandler(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	signature := c.GetHeader(SignatureHeader)
	eventType := c.GetHeader(EventTypeHeader)
	if eventType == "" {
		eventType = "orders/unknown"
	}

	result, err := h.webhook.ProcessOrderEvent(c.Request.Context(), eventType, rawBody, signature)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapWebhookResultToResponse(result))
}

// WebhookPreflightHandler answers CORS preflights on the webhook route.
// OPTIONS /v1/webhooks/orders - always 200 with no body.
func (h *PaymentHandler) WebhookPreflightHandler(c *gin.Context) {
	c.Status(http.StatusOK)
}

// CheckPaymentStatusHandler triggers a provider payment check for a request.
// POST /v1/requests/:id/payment-status - optional body {"force": true}.
// Non-forced checks inside the rate-limit window return 429; force bypasses
// it. A check that leaves an open cart unpaid also starts background polling
// for the request.
func (h *PaymentHandler) CheckPaymentStatusHandler(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.CheckPaymentStatusRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleValidationErrorGin(c, err, h.logger)
			return
		}
	}

	result, err := h.checker.CheckNow(c.Request.Context(), requestID, req.Force)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if !result.Paid && result.Request.CartData != nil && !result.Request.Final() {
		// Best effort; a poller that is already running reports a conflict.
		if err := h.checker.StartPolling(c.Request.Context(), requestID); err != nil && h.logger != nil {
			h.logger.Debug("background polling not started",
				slog.String("request_id", requestID.String()),
				slog.Any("error", err))
		}
	}

	c.JSON(http.StatusOK, dto.MapCheckResultToResponse(result))
}

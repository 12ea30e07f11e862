// Package http provides HTTP handlers for the mail queue: processor
// invocation, admin email dispatch, and delivery log listing.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goformed/backoffice/internal/httputil"
	"github.com/goformed/backoffice/internal/mailqueue/domain"
	"github.com/goformed/backoffice/internal/mailqueue/http/dto"
	"github.com/goformed/backoffice/internal/mailqueue/usecase"
)

// QueueProcessor drains the email queue and exposes the delivery log.
type QueueProcessor interface {
	ProcessQueue(ctx context.Context) (*domain.ProcessSummary, error)
	ListLogs(ctx context.Context, offset, limit int) ([]*domain.EmailLog, error)
}

// AdminDispatcher enqueues admin notification emails.
type AdminDispatcher interface {
	SendAdminEmail(ctx context.Context, input usecase.DispatchInput) (*usecase.DispatchResult, error)
}

// MailQueueHandler handles HTTP requests for mail queue operations.
type MailQueueHandler struct {
	processor QueueProcessor
	dispatch  AdminDispatcher
	logger    *slog.Logger
}

// NewMailQueueHandler creates a new mail queue handler.
func NewMailQueueHandler(
	processor QueueProcessor,
	dispatch AdminDispatcher,
	logger *slog.Logger,
) *MailQueueHandler {
	return &MailQueueHandler{
		processor: processor,
		dispatch:  dispatch,
		logger:    logger,
	}
}

// ProcessHandler runs one queue processing invocation.
// POST /v1/email-queue/process - no request body.
// Returns 200 OK with batch results; per-job failures are reported in the
// results, not as an HTTP error.
func (h *MailQueueHandler) ProcessHandler(c *gin.Context) {
	summary, err := h.processor.ProcessQueue(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSummaryToProcessResponse(summary))
}

// SendAdminEmailHandler enqueues an admin notification email.
// POST /v1/admin/emails
// Returns 202 Accepted: the email is durably queued, not yet delivered.
func (h *MailQueueHandler) SendAdminEmailHandler(c *gin.Context) {
	var req dto.SendAdminEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	result, err := h.dispatch.SendAdminEmail(c.Request.Context(), req.ToDispatchInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MapDispatchResultToResponse(result))
}

// ListLogsHandler retrieves delivery audit rows with pagination support.
// GET /v1/email-logs?offset=0&limit=50
func (h *MailQueueHandler) ListLogsHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	logs, err := h.processor.ListLogs(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEmailLogsToListResponse(logs, offset, limit))
}

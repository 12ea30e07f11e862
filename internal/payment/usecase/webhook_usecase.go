// Package usecase implements the payment reconciliation business logic:
// webhook processing for order events and background payment polling.
package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goformed/backoffice/internal/diagnostics"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/metrics"
	"github.com/goformed/backoffice/internal/payment/domain"
)

// WebhookConfig holds webhook processing configuration.
type WebhookConfig struct {
	// Secret signs incoming webhook payloads.
	Secret string
	// EmailWindow bounds the customer-email fallback resolver.
	EmailWindow time.Duration
}

// CompanyRequestRepository defines company request persistence operations.
type CompanyRequestRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CompanyRequest, error)
	UpdatePaymentData(ctx context.Context, id uuid.UUID, payment *domain.PaymentData) error
	MarkCheckoutCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error
	FindRecentIDByEmail(ctx context.Context, email string, window time.Duration) (uuid.UUID, error)
}

// WebhookLogRepository persists webhook audit records.
type WebhookLogRepository interface {
	Create(ctx context.Context, log *domain.WebhookLog) error
}

// RequestNoteRepository persists communication notes.
type RequestNoteRepository interface {
	Create(ctx context.Context, note *domain.RequestNote) error
}

// WebhookResult is the outcome of processing one webhook delivery.
type WebhookResult struct {
	Outcome   domain.Outcome
	RequestID *uuid.UUID
	OrderID   string
}

// WebhookUseCase verifies and reconciles incoming order webhooks. The
// payment write is authoritative; the note and audit log writes are best
// effort and never fail the event.
type WebhookUseCase struct {
	config      WebhookConfig
	requestRepo CompanyRequestRepository
	logRepo     WebhookLogRepository
	noteRepo    RequestNoteRepository
	metrics     metrics.BusinessMetrics
	diag        *diagnostics.Service
	logger      *slog.Logger
}

// NewWebhookUseCase creates a new WebhookUseCase.
func NewWebhookUseCase(
	config WebhookConfig,
	requestRepo CompanyRequestRepository,
	logRepo WebhookLogRepository,
	noteRepo RequestNoteRepository,
	businessMetrics metrics.BusinessMetrics,
	diag *diagnostics.Service,
	logger *slog.Logger,
) *WebhookUseCase {
	if config.EmailWindow <= 0 {
		config.EmailWindow = 24 * time.Hour
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}

	return &WebhookUseCase{
		config:      config,
		requestRepo: requestRepo,
		logRepo:     logRepo,
		noteRepo:    noteRepo,
		metrics:     businessMetrics,
		diag:        diag,
		logger:      logger,
	}
}

// VerifySignature checks the base64 HMAC-SHA256 signature over the raw body.
// The comparison is constant time.
func (uc *WebhookUseCase) VerifySignature(rawBody []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(uc.config.Secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperrors.Wrap(apperrors.ErrUnauthorized, "webhook signature mismatch")
	}
	return nil
}

// ProcessOrderEvent handles one order webhook delivery. The raw body is
// verified before any parsing. Events without a payment signal or without a
// resolvable request id leave request state untouched; every classified
// delivery still gets an append-only audit row.
func (uc *WebhookUseCase) ProcessOrderEvent(
	ctx context.Context,
	eventType string,
	rawBody []byte,
	signature string,
) (*WebhookResult, error) {
	if err := uc.VerifySignature(rawBody, signature); err != nil {
		uc.metrics.RecordOperation(ctx, "webhook", "verify", "error")
		return nil, err
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("malformed order payload: %v", err))
	}

	result := &WebhookResult{OrderID: strconv.FormatInt(event.ID, 10)}

	if !event.Paid() {
		result.Outcome = domain.OutcomeNotPaid
		uc.finish(ctx, eventType, rawBody, result)
		return result, nil
	}

	requestID, ok := uc.resolveRequestID(ctx, &event)
	if !ok {
		result.Outcome = domain.OutcomeUnresolved
		if uc.logger != nil {
			uc.logger.Warn("order event could not be correlated",
				slog.String("order_id", result.OrderID),
				slog.String("event_type", eventType),
			)
		}
		uc.finish(ctx, eventType, rawBody, result)
		return result, nil
	}
	result.RequestID = &requestID

	if _, err := uc.requestRepo.GetByID(ctx, requestID); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			result.Outcome = domain.OutcomeRequestMissing
			uc.finish(ctx, eventType, rawBody, result)
			return result, nil
		}
		return nil, err
	}

	payment := &domain.PaymentData{
		OrderID:         result.OrderID,
		OrderNumber:     strconv.FormatInt(event.OrderNumber, 10),
		TotalPrice:      event.Amount(),
		Currency:        event.Currency,
		FinancialStatus: event.FinancialStatus,
		PaidAt:          event.CreatedAt,
		IsTestOrder:     event.Test,
	}

	if err := uc.requestRepo.UpdatePaymentData(ctx, requestID, payment); err != nil {
		uc.metrics.RecordOperation(ctx, "webhook", "process", "error")
		return nil, apperrors.Wrap(err, "failed to record payment")
	}

	result.Outcome = domain.OutcomeProcessed
	uc.writeNote(ctx, requestID, &event)
	uc.finish(ctx, eventType, rawBody, result)

	if uc.logger != nil {
		uc.logger.Info("payment recorded from webhook",
			slog.String("request_id", requestID.String()),
			slog.String("order_id", result.OrderID),
			slog.Float64("amount", payment.TotalPrice),
		)
	}

	return result, nil
}

// requestIDNoteRegex extracts a request id from free-text order notes.
var requestIDNoteRegex = regexp.MustCompile(`Request ID:\s*([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)

// resolveRequestID runs the ordered correlation chain: note attributes,
// cart attributes, line item properties, free-text note, then the recent
// customer-email fallback. The first match wins.
func (uc *WebhookUseCase) resolveRequestID(ctx context.Context, event *domain.OrderEvent) (uuid.UUID, bool) {
	if id, ok := findRequestIDAttribute(event.NoteAttributes); ok {
		return id, true
	}
	if id, ok := findRequestIDAttribute(event.Attributes); ok {
		return id, true
	}
	for _, item := range event.LineItems {
		if id, ok := findRequestIDAttribute(item.Properties); ok {
			return id, true
		}
	}
	if match := requestIDNoteRegex.FindStringSubmatch(event.Note); match != nil {
		if id, err := uuid.Parse(match[1]); err == nil {
			return id, true
		}
	}

	email := event.CustomerEmail()
	if email != "" {
		id, err := uc.requestRepo.FindRecentIDByEmail(ctx, email, uc.config.EmailWindow)
		if err == nil {
			return id, true
		}
		if !apperrors.Is(err, apperrors.ErrNotFound) && uc.logger != nil {
			uc.logger.Warn("email fallback lookup failed", slog.Any("error", err))
		}
	}

	return uuid.Nil, false
}

// findRequestIDAttribute scans name/value pairs for a request id key.
func findRequestIDAttribute(pairs []domain.NameValue) (uuid.UUID, bool) {
	for _, pair := range pairs {
		name := strings.ToLower(strings.TrimSpace(pair.Name))
		name = strings.ReplaceAll(name, " ", "_")
		if name != "request_id" && name != "requestid" {
			continue
		}
		if id, err := uuid.Parse(strings.TrimSpace(pair.Value)); err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

// writeNote records a system communication note. Best effort.
func (uc *WebhookUseCase) writeNote(ctx context.Context, requestID uuid.UUID, event *domain.OrderEvent) {
	if uc.noteRepo == nil {
		return
	}

	note := &domain.RequestNote{
		ID:        uuid.Must(uuid.NewV7()),
		RequestID: requestID,
		Author:    domain.SystemAuthor,
		Body: fmt.Sprintf("Payment received: order #%d, %s %s.",
			event.OrderNumber, event.TotalPrice, event.Currency),
	}
	if err := uc.noteRepo.Create(ctx, note); err != nil && uc.logger != nil {
		uc.logger.Warn("failed to write payment note", slog.Any("error", err))
	}
}

// finish records the audit log, metrics, and diagnostics for one event.
// All writes here are best effort.
func (uc *WebhookUseCase) finish(ctx context.Context, eventType string, rawBody []byte, result *WebhookResult) {
	if uc.logRepo != nil {
		log := &domain.WebhookLog{
			ID:        uuid.Must(uuid.NewV7()),
			Source:    "shopify",
			EventType: eventType,
			OrderID:   result.OrderID,
			RequestID: result.RequestID,
			Outcome:   result.Outcome,
			Payload:   rawBody,
		}
		if err := uc.logRepo.Create(ctx, log); err != nil && uc.logger != nil {
			uc.logger.Warn("failed to write webhook log", slog.Any("error", err))
		}
	}

	uc.metrics.RecordOperation(ctx, "webhook", "process", string(result.Outcome))

	if uc.diag != nil {
		uc.diag.Record("webhook", "order event handled", map[string]any{
			"order_id": result.OrderID,
			"outcome":  string(result.Outcome),
		})
	}
}

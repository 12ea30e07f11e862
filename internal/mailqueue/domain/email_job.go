// Package domain defines the core mail queue domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/goformed/backoffice/internal/errors"
)

// EmailJobStatus represents the delivery state of a queued email.
type EmailJobStatus string

const (
	EmailJobStatusPending EmailJobStatus = "pending"
	EmailJobStatusSent    EmailJobStatus = "sent"
	EmailJobStatusFailed  EmailJobStatus = "failed"
)

// MaxAttempts is the retry ceiling after which a job is terminally failed.
const MaxAttempts = 3

// EmailJob represents a queued outbound email awaiting delivery.
// Rows are created by the admin dispatch flow and mutated only by the
// queue processor. Terminal states (sent, or failed once the retry
// ceiling is reached) are never re-processed.
type EmailJob struct {
	ID            uuid.UUID
	Recipient     string
	Subject       string
	TemplateName  string
	TemplateData  map[string]any
	Status        EmailJobStatus
	Attempts      int
	LastAttemptAt *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the job will never be processed again.
func (j *EmailJob) Terminal() bool {
	return j.Status == EmailJobStatusSent ||
		j.Status == EmailJobStatusFailed ||
		j.Attempts >= MaxAttempts
}

// DeliveryResult is the outcome of a successful SMTP transmission.
type DeliveryResult struct {
	// Provider identifies the delivery adapter (e.g., "smtp").
	Provider string
	// MessageID is the queue id reported by the mail server, when available.
	MessageID string
}

// ProcessSummary reports the outcome of one processor invocation.
type ProcessSummary struct {
	Processed        int      `json:"processed"`
	Sent             int      `json:"sent"`
	Failed           int      `json:"failed"`
	Errors           []string `json:"errors"`
	TotalPending     int      `json:"totalPending"`
	RemainingPending int      `json:"remainingPending"`
}

// Domain-specific errors for mail queue operations.
var (
	// ErrJobNotFound indicates the requested email job does not exist.
	ErrJobNotFound = apperrors.Wrap(apperrors.ErrNotFound, "email job not found")

	// ErrDispatchRateLimited indicates the enqueue budget was exceeded.
	ErrDispatchRateLimited = apperrors.Wrap(apperrors.ErrRateLimited, "email dispatch budget exceeded")

	// ErrNoRecipients indicates a dispatch request without any recipients.
	ErrNoRecipients = apperrors.Wrap(apperrors.ErrInvalidInput, "at least one recipient is required")
)

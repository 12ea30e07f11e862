// Package usecase implements the mail queue business logic: draining the
// queue against the delivery adapter and enqueueing admin notifications.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/goformed/backoffice/internal/diagnostics"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/mailqueue/domain"
	"github.com/goformed/backoffice/internal/metrics"
)

// ProcessorConfig holds queue processor configuration.
type ProcessorConfig struct {
	// BatchSize caps how many jobs one invocation may attempt.
	BatchSize int
	// MaxAttempts is the retry ceiling; a job reaching it is terminally failed.
	MaxAttempts int
	// JobDelay is the courtesy throttle between jobs within one batch.
	JobDelay time.Duration
}

// EmailJobRepository defines email job repository operations.
type EmailJobRepository interface {
	Create(ctx context.Context, job *domain.EmailJob, dedupWindow time.Duration) (bool, error)
	GetPendingJobs(ctx context.Context, limit, maxAttempts int) ([]*domain.EmailJob, error)
	Update(ctx context.Context, job *domain.EmailJob) error
	CountPending(ctx context.Context, maxAttempts int) (int, error)
	CountEnqueuedSince(ctx context.Context, since time.Time) (int, error)
}

// EmailLogRepository defines append-only email log operations.
type EmailLogRepository interface {
	Create(ctx context.Context, log *domain.EmailLog) error
	List(ctx context.Context, offset, limit int) ([]*domain.EmailLog, error)
}

// Mailer transmits one email job and reports the provider outcome.
type Mailer interface {
	Send(ctx context.Context, job *domain.EmailJob) (domain.DeliveryResult, error)
}

// ProcessorUseCase drains the email queue. Jobs within a batch are sent
// strictly sequentially to respect SMTP rate limits; each row's writes are
// independent and autocommitted so a sent email is never re-processed even
// if a later job in the batch fails.
type ProcessorUseCase struct {
	config  ProcessorConfig
	jobRepo EmailJobRepository
	logRepo EmailLogRepository
	mailer  Mailer
	metrics metrics.BusinessMetrics
	diag    *diagnostics.Service
	logger  *slog.Logger
}

// NewProcessorUseCase creates a new ProcessorUseCase.
func NewProcessorUseCase(
	config ProcessorConfig,
	jobRepo EmailJobRepository,
	logRepo EmailLogRepository,
	mailer Mailer,
	businessMetrics metrics.BusinessMetrics,
	diag *diagnostics.Service,
	logger *slog.Logger,
) *ProcessorUseCase {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = domain.MaxAttempts
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}

	return &ProcessorUseCase{
		config:  config,
		jobRepo: jobRepo,
		logRepo: logRepo,
		mailer:  mailer,
		metrics: businessMetrics,
		diag:    diag,
		logger:  logger,
	}
}

// ProcessQueue performs one processor invocation: select up to BatchSize
// pending jobs below the retry ceiling in enqueue order, attempt each one,
// and record the outcome. Per-job failures never abort the batch; an error
// before any row is read is fatal to the invocation.
func (uc *ProcessorUseCase) ProcessQueue(ctx context.Context) (*domain.ProcessSummary, error) {
	start := time.Now()
	summary := &domain.ProcessSummary{Errors: []string{}}

	totalPending, err := uc.jobRepo.CountPending(ctx, uc.config.MaxAttempts)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count pending jobs")
	}
	summary.TotalPending = totalPending

	jobs, err := uc.jobRepo.GetPendingJobs(ctx, uc.config.BatchSize, uc.config.MaxAttempts)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to fetch pending jobs")
	}

	if uc.logger != nil && len(jobs) > 0 {
		uc.logger.Info("processing email queue",
			slog.Int("batch", len(jobs)),
			slog.Int("total_pending", totalPending),
		)
	}

	for i, job := range jobs {
		if err := uc.processJob(ctx, job, summary); err != nil {
			return nil, err
		}
		summary.Processed++

		// Courtesy throttle between jobs, skipped after the last one
		if i < len(jobs)-1 && uc.config.JobDelay > 0 {
			if !sleepCtx(ctx, uc.config.JobDelay) {
				break
			}
		}
	}

	remaining, err := uc.jobRepo.CountPending(ctx, uc.config.MaxAttempts)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count remaining jobs")
	}
	summary.RemainingPending = remaining

	status := "success"
	if summary.Failed > 0 {
		status = "error"
	}
	uc.metrics.RecordOperation(ctx, "mailqueue", "process_queue", status)
	uc.metrics.RecordDuration(ctx, "mailqueue", "process_queue", time.Since(start), status)

	if uc.diag != nil {
		uc.diag.Record("mailqueue", "queue processed", map[string]any{
			"processed": summary.Processed,
			"sent":      summary.Sent,
			"failed":    summary.Failed,
			"remaining": summary.RemainingPending,
		})
	}

	return summary, nil
}

// processJob attempts one delivery and persists the outcome. Adapter errors
// are captured into the summary; repository errors are returned and abort
// the invocation.
func (uc *ProcessorUseCase) processJob(
	ctx context.Context,
	job *domain.EmailJob,
	summary *domain.ProcessSummary,
) error {
	result, sendErr := uc.mailer.Send(ctx, job)

	now := time.Now()
	job.LastAttemptAt = &now

	if sendErr != nil {
		job.Attempts++
		errMsg := sendErr.Error()
		job.ErrorMessage = &errMsg
		if job.Attempts >= uc.config.MaxAttempts {
			// Terminal: no further retries
			job.Status = domain.EmailJobStatusFailed
		}

		if err := uc.jobRepo.Update(ctx, job); err != nil {
			return apperrors.Wrap(err, "failed to record delivery failure")
		}
		if err := uc.appendLog(ctx, job, domain.EmailJobStatusFailed, "", &errMsg); err != nil {
			return err
		}

		summary.Failed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", job.Recipient, sendErr))
		uc.metrics.RecordOperation(ctx, "mailqueue", "smtp_send", "error")

		if uc.logger != nil {
			uc.logger.Warn("email delivery failed",
				slog.String("job_id", job.ID.String()),
				slog.String("recipient", job.Recipient),
				slog.Int("attempts", job.Attempts),
				slog.Any("error", sendErr),
			)
		}
		return nil
	}

	job.Status = domain.EmailJobStatusSent
	job.ErrorMessage = nil

	if err := uc.jobRepo.Update(ctx, job); err != nil {
		return apperrors.Wrap(err, "failed to record delivery success")
	}
	if err := uc.appendLog(ctx, job, domain.EmailJobStatusSent, result.MessageID, nil); err != nil {
		return err
	}

	summary.Sent++
	uc.metrics.RecordOperation(ctx, "mailqueue", "smtp_send", "success")

	if uc.logger != nil {
		uc.logger.Info("email delivered",
			slog.String("job_id", job.ID.String()),
			slog.String("recipient", job.Recipient),
			slog.String("message_id", result.MessageID),
		)
	}
	return nil
}

// appendLog writes the append-only audit row for one delivery attempt.
func (uc *ProcessorUseCase) appendLog(
	ctx context.Context,
	job *domain.EmailJob,
	status domain.EmailJobStatus,
	messageID string,
	errMsg *string,
) error {
	log := &domain.EmailLog{
		ID:           uuid.Must(uuid.NewV7()),
		Recipient:    job.Recipient,
		Subject:      job.Subject,
		Status:       status,
		Provider:     "smtp",
		ErrorMessage: errMsg,
		TemplateName: job.TemplateName,
	}
	if messageID != "" {
		log.ProviderMessageID = &messageID
	}

	if err := uc.logRepo.Create(ctx, log); err != nil {
		return apperrors.Wrap(err, "failed to append email log")
	}
	return nil
}

// ListLogs returns delivery audit rows, newest first.
func (uc *ProcessorUseCase) ListLogs(ctx context.Context, offset, limit int) ([]*domain.EmailLog, error) {
	return uc.logRepo.List(ctx, offset, limit)
}

// sleepCtx waits for d or until the context is cancelled.
// Returns false when the wait was interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

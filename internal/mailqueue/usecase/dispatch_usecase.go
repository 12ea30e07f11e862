package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jellydator/validation"

	"github.com/goformed/backoffice/internal/database"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/mailqueue/domain"
	"github.com/goformed/backoffice/internal/metrics"
	appvalidation "github.com/goformed/backoffice/internal/validation"
)

// DispatchConfig holds admin email dispatch configuration.
type DispatchConfig struct {
	// MaxPerHour caps how many jobs may be enqueued in a rolling hour.
	MaxPerHour int
	// Retries is how many extra times the whole dispatch sequence is retried.
	Retries uint64
	// RetryInterval is the base delay; the n-th retry waits n * RetryInterval.
	RetryInterval time.Duration
	// DedupWindow suppresses duplicate recipient+subject enqueues.
	DedupWindow time.Duration
}

// ProcessorNotifier wakes the queue processor after new jobs are enqueued.
// The wake-up is best effort; jobs are durable either way.
type ProcessorNotifier interface {
	NotifyPending(ctx context.Context) error
}

// DispatchInput is a request to enqueue an admin notification email.
type DispatchInput struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
}

// Validate validates the dispatch input.
func (i DispatchInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Recipients,
			validation.Required.Error("at least one recipient is required"),
			validation.Each(validation.Required, appvalidation.Email),
		),
		validation.Field(&i.Subject, validation.Required, appvalidation.NotBlank),
		validation.Field(&i.Message, validation.Required, appvalidation.NotBlank),
	)
}

// DispatchResult reports what one dispatch call enqueued.
type DispatchResult struct {
	Enqueued     int `json:"enqueued"`
	Deduplicated int `json:"deduplicated"`
}

// DispatchUseCase enqueues admin notification emails. One pending job is
// created per recipient inside a single transaction; duplicates within the
// dedup window are skipped. The whole sequence is retried with linear
// backoff on transient failure.
type DispatchUseCase struct {
	config    DispatchConfig
	txManager database.TxManager
	jobRepo   EmailJobRepository
	notifier  ProcessorNotifier
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
}

// NewDispatchUseCase creates a new DispatchUseCase.
func NewDispatchUseCase(
	config DispatchConfig,
	txManager database.TxManager,
	jobRepo EmailJobRepository,
	notifier ProcessorNotifier,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *DispatchUseCase {
	if config.MaxPerHour <= 0 {
		config.MaxPerHour = 100
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}
	if config.DedupWindow <= 0 {
		config.DedupWindow = 24 * time.Hour
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}

	return &DispatchUseCase{
		config:    config,
		txManager: txManager,
		jobRepo:   jobRepo,
		notifier:  notifier,
		metrics:   businessMetrics,
		logger:    logger,
	}
}

// SendAdminEmail enqueues one pending job per recipient and wakes the
// processor. Validation and rate-limit violations fail immediately; other
// failures retry the full sequence up to config.Retries extra times with
// linearly growing delays.
func (uc *DispatchUseCase) SendAdminEmail(ctx context.Context, input DispatchInput) (*DispatchResult, error) {
	if err := input.Validate(); err != nil {
		return nil, appvalidation.WrapValidationError(err)
	}

	var result *DispatchResult
	operation := func() error {
		var err error
		result, err = uc.dispatch(ctx, input)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(uc.config.RetryInterval), uc.config.Retries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		uc.metrics.RecordOperation(ctx, "mailqueue", "dispatch", "error")
		return nil, err
	}

	uc.metrics.RecordOperation(ctx, "mailqueue", "dispatch", "success")

	if uc.notifier != nil {
		// Best effort: a failed wake-up just delays delivery until the next run.
		if err := uc.notifier.NotifyPending(ctx); err != nil && uc.logger != nil {
			uc.logger.Warn("processor wake-up failed", slog.Any("error", err))
		}
	}

	return result, nil
}

// dispatch performs one attempt of the enqueue sequence.
func (uc *DispatchUseCase) dispatch(ctx context.Context, input DispatchInput) (*DispatchResult, error) {
	enqueued, err := uc.jobRepo.CountEnqueuedSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to check dispatch budget")
	}
	if enqueued+len(input.Recipients) > uc.config.MaxPerHour {
		return nil, backoff.Permanent(domain.ErrDispatchRateLimited)
	}

	result := &DispatchResult{}
	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, recipient := range input.Recipients {
			job := &domain.EmailJob{
				ID:           uuid.Must(uuid.NewV7()),
				Recipient:    recipient,
				Subject:      input.Subject,
				TemplateName: "admin_notification",
				TemplateData: map[string]any{
					"subject": input.Subject,
					"message": input.Message,
				},
				Status: domain.EmailJobStatusPending,
			}

			inserted, err := uc.jobRepo.Create(ctx, job, uc.config.DedupWindow)
			if err != nil {
				return apperrors.Wrap(err, "failed to enqueue email job")
			}
			if inserted {
				result.Enqueued++
			} else {
				result.Deduplicated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.logger != nil {
		uc.logger.Info("admin email dispatched",
			slog.Int("enqueued", result.Enqueued),
			slog.Int("deduplicated", result.Deduplicated),
		)
	}
	return result, nil
}

// linearBackOff waits base, 2*base, 3*base between retries.
type linearBackOff struct {
	base time.Duration
	step int
}

func newLinearBackOff(base time.Duration) *linearBackOff {
	return &linearBackOff{base: base}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.step++
	return time.Duration(b.step) * b.base
}

func (b *linearBackOff) Reset() {
	b.step = 0
}

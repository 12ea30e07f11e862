package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goformed/backoffice/internal/diagnostics"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/metrics"
	"github.com/goformed/backoffice/internal/payment/domain"
)

// PollerState is the explicit state of the polling timer.
type PollerState string

const (
	// PollerStateIdle means no polling is scheduled.
	PollerStateIdle PollerState = "idle"
	// PollerStateWaiting means a check is scheduled but not yet due.
	PollerStateWaiting PollerState = "waiting"
	// PollerStateChecking means a provider check is in flight.
	PollerStateChecking PollerState = "checking"
	// PollerStateBackoff means the last check found no payment and the next
	// one is scheduled further out.
	PollerStateBackoff PollerState = "backoff"
)

// PollerConfig holds payment polling configuration.
type PollerConfig struct {
	// InitialDelay is the wait before the first check after Start.
	InitialDelay time.Duration
	// MinCheckInterval throttles non-forced checks. An explicit force
	// bypasses it.
	MinCheckInterval time.Duration
	// BackoffStart is the first inter-check interval.
	BackoffStart time.Duration
	// BackoffStep is added to the interval after every empty check.
	BackoffStep time.Duration
	// BackoffCeiling caps the interval.
	BackoffCeiling time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 3 * time.Second
	}
	if c.MinCheckInterval <= 0 {
		c.MinCheckInterval = 60 * time.Second
	}
	if c.BackoffStart <= 0 {
		c.BackoffStart = 30 * time.Second
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = 15 * time.Second
	}
	if c.BackoffCeiling <= 0 {
		c.BackoffCeiling = 120 * time.Second
	}
	return c
}

// ProviderClient checks the payment provider for a completed order.
type ProviderClient interface {
	CheckOrderPaid(ctx context.Context, request *domain.CompanyRequest) (bool, error)
}

// CheckResult is the outcome of one payment status check.
type CheckResult struct {
	Paid    bool
	Request *domain.CompanyRequest
}

// StatusPoller watches one company request for payment completion. It runs
// an explicit timer state machine: idle until started, waiting before a
// scheduled check, checking while the provider call is in flight, and
// backoff between empty checks with a linearly growing interval. At most
// one check runs at a time.
type StatusPoller struct {
	config      PollerConfig
	requestID   uuid.UUID
	requestRepo CompanyRequestRepository
	provider    ProviderClient
	onPaid      func(requestID uuid.UUID)
	metrics     metrics.BusinessMetrics
	diag        *diagnostics.Service
	logger      *slog.Logger

	mu        sync.Mutex
	state     PollerState
	checking  bool
	lastCheck time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewStatusPoller creates a poller for one company request. The onPaid
// callback fires once when payment is discovered; it may be nil.
func NewStatusPoller(
	config PollerConfig,
	requestID uuid.UUID,
	requestRepo CompanyRequestRepository,
	provider ProviderClient,
	onPaid func(requestID uuid.UUID),
	businessMetrics metrics.BusinessMetrics,
	diag *diagnostics.Service,
	logger *slog.Logger,
) *StatusPoller {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}

	return &StatusPoller{
		config:      config.withDefaults(),
		requestID:   requestID,
		requestRepo: requestRepo,
		provider:    provider,
		onPaid:      onPaid,
		metrics:     businessMetrics,
		diag:        diag,
		logger:      logger,
		state:       PollerStateIdle,
	}
}

// State returns the current timer state.
func (p *StatusPoller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins background polling. Requests that are already paid, in a
// final status, or without an open cart are not polled. Start returns
// immediately; polling stops on payment discovery, a terminal condition,
// context cancellation, or Stop.
func (p *StatusPoller) Start(ctx context.Context) error {
	request, err := p.requestRepo.GetByID(ctx, p.requestID)
	if err != nil {
		return err
	}

	if request.IsPaid() || request.Final() || request.CartData == nil {
		if p.logger != nil {
			p.logger.Debug("payment polling not needed",
				slog.String("request_id", p.requestID.String()),
				slog.String("status", string(request.Status)),
			)
		}
		return nil
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrConflict, "poller already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = PollerStateWaiting
	p.mu.Unlock()

	go p.run(runCtx)
	return nil
}

// Stop cancels background polling and waits for the loop to exit.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	p.mu.Lock()
	p.state = PollerStateIdle
	p.mu.Unlock()
}

// run is the polling loop: one initial delay, then checks spaced by a
// linearly growing backoff interval.
func (p *StatusPoller) run(ctx context.Context) {
	defer close(p.done)

	if !sleepCtx(ctx, p.config.InitialDelay) {
		return
	}

	interval := p.config.BackoffStart
	for {
		// The loop's cadence is governed by the backoff schedule, so its
		// checks bypass the MinCheckInterval throttle.
		result, err := p.CheckNow(ctx, true)
		if err != nil && ctx.Err() != nil {
			return
		}
		if err == nil && (result.Paid || result.Request.Final() || result.Request.CartData == nil) {
			return
		}
		if err != nil && p.logger != nil {
			p.logger.Warn("payment check failed",
				slog.String("request_id", p.requestID.String()),
				slog.Any("error", err),
			)
		}

		p.setState(PollerStateBackoff)
		if !sleepCtx(ctx, interval) {
			return
		}

		interval += p.config.BackoffStep
		if interval > p.config.BackoffCeiling {
			interval = p.config.BackoffCeiling
		}
	}
}

// CheckNow performs one payment status check. Non-forced checks are
// throttled to one per MinCheckInterval; passing force bypasses the window.
// At most one check runs at a time.
func (p *StatusPoller) CheckNow(ctx context.Context, force bool) (*CheckResult, error) {
	p.mu.Lock()
	if p.checking {
		p.mu.Unlock()
		return nil, apperrors.Wrap(apperrors.ErrConflict, "payment check already in progress")
	}
	if !force && !p.lastCheck.IsZero() && time.Since(p.lastCheck) < p.config.MinCheckInterval {
		p.mu.Unlock()
		return nil, domain.ErrCheckTooSoon
	}
	p.checking = true
	prev := p.state
	p.state = PollerStateChecking
	p.lastCheck = time.Now()
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.checking = false
		// Restore unless the check already resolved the state
		if p.state == PollerStateChecking {
			p.state = prev
		}
		p.mu.Unlock()
	}()

	result, err := p.check(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordOperation(ctx, "payment", "status_check", status)

	return result, err
}

// check loads the request and consults the provider when needed.
func (p *StatusPoller) check(ctx context.Context) (*CheckResult, error) {
	request, err := p.requestRepo.GetByID(ctx, p.requestID)
	if err != nil {
		return nil, err
	}

	if request.IsPaid() {
		p.setState(PollerStateIdle)
		return &CheckResult{Paid: true, Request: request}, nil
	}
	if request.Final() || request.CartData == nil {
		p.setState(PollerStateIdle)
		return &CheckResult{Paid: false, Request: request}, nil
	}

	paid, err := p.provider.CheckOrderPaid(ctx, request)
	if err != nil {
		return nil, apperrors.Wrap(err, "provider payment check failed")
	}
	if !paid {
		return &CheckResult{Paid: false, Request: request}, nil
	}

	now := time.Now()
	if err := p.requestRepo.MarkCheckoutCompleted(ctx, p.requestID, now); err != nil {
		return nil, apperrors.Wrap(err, "failed to record checkout completion")
	}

	request.CartData.CheckoutCompleted = true
	request.CartData.CompletedAt = &now
	p.setState(PollerStateIdle)

	if p.diag != nil {
		p.diag.Record("payment", "payment discovered by poller", map[string]any{
			"request_id": p.requestID.String(),
		})
	}
	if p.logger != nil {
		p.logger.Info("payment discovered by poller",
			slog.String("request_id", p.requestID.String()),
		)
	}
	if p.onPaid != nil {
		p.onPaid(p.requestID)
	}

	return &CheckResult{Paid: true, Request: request}, nil
}

func (p *StatusPoller) setState(state PollerState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
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

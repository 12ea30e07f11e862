package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PollerFactory builds a StatusPoller for one request.
type PollerFactory func(requestID uuid.UUID) *StatusPoller

// PollerRegistry tracks at most one poller per company request so forced
// checks and background polling share the same rate-limit and single-flight
// state.
type PollerRegistry struct {
	factory PollerFactory

	mu      sync.Mutex
	pollers map[uuid.UUID]*StatusPoller
}

// NewPollerRegistry creates a new PollerRegistry.
func NewPollerRegistry(factory PollerFactory) *PollerRegistry {
	return &PollerRegistry{
		factory: factory,
		pollers: make(map[uuid.UUID]*StatusPoller),
	}
}

// Get returns the poller for a request, creating it on first use.
func (r *PollerRegistry) Get(requestID uuid.UUID) *StatusPoller {
	r.mu.Lock()
	defer r.mu.Unlock()

	poller, ok := r.pollers[requestID]
	if !ok {
		poller = r.factory(requestID)
		r.pollers[requestID] = poller
	}
	return poller
}

// CheckNow performs one status check through the request's poller. A check
// that resolves the request (paid, final status, or no cart left to watch)
// also retires the poller so the registry does not accumulate entries for
// settled requests.
func (r *PollerRegistry) CheckNow(ctx context.Context, requestID uuid.UUID, force bool) (*CheckResult, error) {
	poller := r.Get(requestID)

	result, err := poller.CheckNow(ctx, force)
	if err == nil && (result.Paid || result.Request.Final() || result.Request.CartData == nil) {
		r.retire(requestID, poller)
	}
	return result, err
}

// StartPolling begins background polling for a request. The poller outlives
// the caller: its lifetime is bounded by Stop/StopAll, not by the caller's
// context, so a request-scoped context is safe to pass.
func (r *PollerRegistry) StartPolling(ctx context.Context, requestID uuid.UUID) error {
	return r.Get(requestID).Start(context.WithoutCancel(ctx))
}

// retire stops a settled poller and drops it from the registry.
func (r *PollerRegistry) retire(requestID uuid.UUID, poller *StatusPoller) {
	r.mu.Lock()
	if r.pollers[requestID] == poller {
		delete(r.pollers, requestID)
	}
	r.mu.Unlock()

	poller.Stop()
}

// StopAll stops every active poller. Called on shutdown.
func (r *PollerRegistry) StopAll() {
	r.mu.Lock()
	pollers := make([]*StatusPoller, 0, len(r.pollers))
	for _, poller := range r.pollers {
		pollers = append(pollers, poller)
	}
	r.mu.Unlock()

	for _, poller := range pollers {
		poller.Stop()
	}
}

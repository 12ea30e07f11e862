package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/payment/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastPollerConfig() PollerConfig {
	return PollerConfig{
		InitialDelay:     time.Millisecond,
		MinCheckInterval: 60 * time.Second,
		BackoffStart:     5 * time.Millisecond,
		BackoffStep:      5 * time.Millisecond,
		BackoffCeiling:   20 * time.Millisecond,
	}
}

func newTestPoller(requestID uuid.UUID, repo *MockCompanyRequestRepository, provider *MockProviderClient, onPaid func(uuid.UUID)) *StatusPoller {
	return NewStatusPoller(
		fastPollerConfig(), requestID, repo, provider, onPaid, nil, nil,
		slog.New(slog.DiscardHandler),
	)
}

func openCartRequest(id uuid.UUID) *domain.CompanyRequest {
	return &domain.CompanyRequest{
		ID:       id,
		Status:   domain.RequestStatusPendingPayment,
		CartData: &domain.CartData{CartID: "cart-1", CheckoutURL: "https://shop.example/checkout"},
	}
}

func TestStatusPoller_Start_SkipsPaidRequest(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	repo.On("GetByID", mock.Anything, id).
		Return(&domain.CompanyRequest{ID: id, Status: domain.RequestStatusCompleted}, nil)

	poller := newTestPoller(id, repo, provider, nil)
	require.NoError(t, poller.Start(context.Background()))

	assert.Equal(t, PollerStateIdle, poller.State())
	provider.AssertNotCalled(t, "CheckOrderPaid")
	poller.Stop()
}

func TestStatusPoller_Start_SkipsFinalStatus(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	request := openCartRequest(id)
	request.Status = domain.RequestStatusCancelled
	repo.On("GetByID", mock.Anything, id).Return(request, nil)

	poller := newTestPoller(id, repo, provider, nil)
	require.NoError(t, poller.Start(context.Background()))
	assert.Equal(t, PollerStateIdle, poller.State())
}

func TestStatusPoller_DiscoversPayment(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	repo.On("GetByID", mock.Anything, id).Return(openCartRequest(id), nil)
	provider.On("CheckOrderPaid", mock.Anything, mock.Anything).Return(false, nil).Once()
	provider.On("CheckOrderPaid", mock.Anything, mock.Anything).Return(true, nil).Once()
	repo.On("MarkCheckoutCompleted", mock.Anything, id, mock.Anything).Return(nil)

	var paidCalls atomic.Int32
	notified := make(chan struct{})
	poller := newTestPoller(id, repo, provider, func(requestID uuid.UUID) {
		assert.Equal(t, id, requestID)
		if paidCalls.Add(1) == 1 {
			close(notified)
		}
	})

	require.NoError(t, poller.Start(context.Background()))

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("poller never discovered payment")
	}

	poller.Stop()
	assert.Equal(t, int32(1), paidCalls.Load())
	repo.AssertCalled(t, "MarkCheckoutCompleted", mock.Anything, id, mock.Anything)
}

func TestStatusPoller_CheckThrottledInsideWindow(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	repo.On("GetByID", mock.Anything, id).Return(openCartRequest(id), nil)
	provider.On("CheckOrderPaid", mock.Anything, mock.Anything).Return(false, nil)

	poller := newTestPoller(id, repo, provider, nil)

	result, err := poller.CheckNow(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Paid)

	// Second non-forced check inside the 60s window is rejected
	result, err = poller.CheckNow(context.Background(), false)
	assert.Nil(t, result)
	assert.True(t, apperrors.Is(err, apperrors.ErrRateLimited))

	provider.AssertNumberOfCalls(t, "CheckOrderPaid", 1)
}

func TestStatusPoller_ForceBypassesWindow(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	repo.On("GetByID", mock.Anything, id).Return(openCartRequest(id), nil)
	provider.On("CheckOrderPaid", mock.Anything, mock.Anything).Return(false, nil)

	poller := newTestPoller(id, repo, provider, nil)

	_, err := poller.CheckNow(context.Background(), false)
	require.NoError(t, err)

	// The explicit force flag goes through inside the same window
	result, err := poller.CheckNow(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, result.Paid)

	provider.AssertNumberOfCalls(t, "CheckOrderPaid", 2)
}

func TestStatusPoller_CheckNow_AlreadyPaidSkipsProvider(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	request := openCartRequest(id)
	request.CartData.CheckoutCompleted = true
	repo.On("GetByID", mock.Anything, id).Return(request, nil)

	poller := newTestPoller(id, repo, provider, nil)
	result, err := poller.CheckNow(context.Background(), true)

	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, PollerStateIdle, poller.State())
	provider.AssertNotCalled(t, "CheckOrderPaid")
}

func TestStatusPoller_StopCancelsPolling(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	repo.On("GetByID", mock.Anything, id).Return(openCartRequest(id), nil)
	provider.On("CheckOrderPaid", mock.Anything, mock.Anything).Return(false, nil)

	poller := newTestPoller(id, repo, provider, nil)
	require.NoError(t, poller.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	poller.Stop()
	assert.Equal(t, PollerStateIdle, poller.State())

	// Second Stop is a no-op
	poller.Stop()
}

func TestStatusPoller_DoubleStartRejected(t *testing.T) {
	repo := new(MockCompanyRequestRepository)
	provider := new(MockProviderClient)
	id := uuid.Must(uuid.NewV7())

	repo.On("GetByID", mock.Anything, id).Return(openCartRequest(id), nil)
	provider.On("CheckOrderPaid", mock.Anything, mock.Anything).Return(false, nil)

	poller := newTestPoller(id, repo, provider, nil)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	err := poller.Start(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

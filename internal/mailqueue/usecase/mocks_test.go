package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

type MockEmailJobRepository struct {
	mock.Mock
}

func (m *MockEmailJobRepository) Create(ctx context.Context, job *domain.EmailJob, dedupWindow time.Duration) (bool, error) {
	args := m.Called(ctx, job, dedupWindow)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmailJobRepository) GetPendingJobs(ctx context.Context, limit, maxAttempts int) ([]*domain.EmailJob, error) {
	args := m.Called(ctx, limit, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) Update(ctx context.Context, job *domain.EmailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockEmailJobRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	args := m.Called(ctx, maxAttempts)
	return args.Int(0), args.Error(1)
}

func (m *MockEmailJobRepository) CountEnqueuedSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

type MockEmailLogRepository struct {
	mock.Mock
}

func (m *MockEmailLogRepository) Create(ctx context.Context, log *domain.EmailLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockEmailLogRepository) List(ctx context.Context, offset, limit int) ([]*domain.EmailLog, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailLog), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, job *domain.EmailJob) (domain.DeliveryResult, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(domain.DeliveryResult), args.Error(1)
}

type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockProcessorNotifier struct {
	mock.Mock
}

func (m *MockProcessorNotifier) NotifyPending(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

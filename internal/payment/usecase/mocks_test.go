package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/goformed/backoffice/internal/payment/domain"
)

type MockCompanyRequestRepository struct {
	mock.Mock
}

func (m *MockCompanyRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CompanyRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompanyRequest), args.Error(1)
}

func (m *MockCompanyRequestRepository) UpdatePaymentData(ctx context.Context, id uuid.UUID, payment *domain.PaymentData) error {
	args := m.Called(ctx, id, payment)
	return args.Error(0)
}

func (m *MockCompanyRequestRepository) MarkCheckoutCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	args := m.Called(ctx, id, completedAt)
	return args.Error(0)
}

func (m *MockCompanyRequestRepository) FindRecentIDByEmail(ctx context.Context, email string, window time.Duration) (uuid.UUID, error) {
	args := m.Called(ctx, email, window)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type MockWebhookLogRepository struct {
	mock.Mock
}

func (m *MockWebhookLogRepository) Create(ctx context.Context, log *domain.WebhookLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

type MockRequestNoteRepository struct {
	mock.Mock
}

func (m *MockRequestNoteRepository) Create(ctx context.Context, note *domain.RequestNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) CheckOrderPaid(ctx context.Context, request *domain.CompanyRequest) (bool, error) {
	args := m.Called(ctx, request)
	return args.Bool(0), args.Error(1)
}

// Package repository provides data persistence implementations for payment entities.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/goformed/backoffice/internal/database"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/payment/domain"
)

// PostgreSQLCompanyRequestRepository handles company request persistence for PostgreSQL.
// Payment and cart records are stored as JSON columns on the request row.
type PostgreSQLCompanyRequestRepository struct {
	db *sql.DB
}

// NewPostgreSQLCompanyRequestRepository creates a new PostgreSQLCompanyRequestRepository.
func NewPostgreSQLCompanyRequestRepository(db *sql.DB) *PostgreSQLCompanyRequestRepository {
	return &PostgreSQLCompanyRequestRepository{db: db}
}

// GetByID retrieves a company request by its ID.
func (r *PostgreSQLCompanyRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CompanyRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, user_id, customer_email, status, payment_data, cart_data, created_at, updated_at
			  FROM company_requests
			  WHERE id = $1`

	var request domain.CompanyRequest
	var status string
	var paymentJSON, cartJSON []byte

	err := querier.QueryRowContext(ctx, query, id).Scan(
		&request.ID, &request.UserID, &request.CustomerEmail, &status,
		&paymentJSON, &cartJSON, &request.CreatedAt, &request.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRequestNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get company request")
	}

	request.Status = domain.RequestStatus(status)

	if paymentJSON != nil {
		if err := json.Unmarshal(paymentJSON, &request.PaymentData); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal payment data")
		}
	}
	if cartJSON != nil {
		if err := json.Unmarshal(cartJSON, &request.CartData); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal cart data")
		}
	}

	return &request, nil
}

// UpdatePaymentData writes the payment record onto a request row.
// This is the authoritative write of the webhook flow.
func (r *PostgreSQLCompanyRequestRepository) UpdatePaymentData(
	ctx context.Context,
	id uuid.UUID,
	payment *domain.PaymentData,
) error {
	querier := database.GetTx(ctx, r.db)

	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal payment data")
	}

	query := `UPDATE company_requests
			  SET payment_data = $1, updated_at = NOW()
			  WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, paymentJSON, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update payment data")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read payment update result")
	}
	if affected == 0 {
		return domain.ErrRequestNotFound
	}

	return nil
}

// MarkCheckoutCompleted flags the cart as completed at the given time.
// The cart JSON is patched in place so the cart id and checkout URL survive.
func (r *PostgreSQLCompanyRequestRepository) MarkCheckoutCompleted(
	ctx context.Context,
	id uuid.UUID,
	completedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE company_requests
			  SET cart_data = jsonb_set(
				  jsonb_set(COALESCE(cart_data, '{}'::jsonb), '{checkout_completed}', 'true'),
				  '{completed_at}', to_jsonb($1::timestamptz)
			  ),
			  updated_at = NOW()
			  WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, completedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark checkout completed")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read checkout update result")
	}
	if affected == 0 {
		return domain.ErrRequestNotFound
	}

	return nil
}

// FindRecentIDByEmail returns the most recent request id created within the
// window for the given customer email. Backs the webhook email fallback
// resolver.
func (r *PostgreSQLCompanyRequestRepository) FindRecentIDByEmail(
	ctx context.Context,
	email string,
	window time.Duration,
) (uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id FROM company_requests
			  WHERE LOWER(customer_email) = LOWER($1) AND created_at > $2
			  ORDER BY created_at DESC
			  LIMIT 1`

	var id uuid.UUID
	err := querier.QueryRowContext(ctx, query, email, time.Now().Add(-window)).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, domain.ErrRequestNotFound
	}
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to find request by email")
	}

	return id, nil
}

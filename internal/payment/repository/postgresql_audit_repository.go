package repository

import (
	"context"
	"database/sql"

	"github.com/goformed/backoffice/internal/database"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/payment/domain"
)

// PostgreSQLWebhookLogRepository persists append-only webhook audit records.
type PostgreSQLWebhookLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLWebhookLogRepository creates a new PostgreSQLWebhookLogRepository.
func NewPostgreSQLWebhookLogRepository(db *sql.DB) *PostgreSQLWebhookLogRepository {
	return &PostgreSQLWebhookLogRepository{db: db}
}

// Create inserts a webhook audit record.
func (r *PostgreSQLWebhookLogRepository) Create(ctx context.Context, log *domain.WebhookLog) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO webhook_logs (id, source, event_type, order_id, request_id, outcome, payload, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := querier.ExecContext(ctx, query,
		log.ID, log.Source, log.EventType, log.OrderID, log.RequestID, log.Outcome, log.Payload,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create webhook log")
	}

	return nil
}

// PostgreSQLRequestNoteRepository persists append-only communication notes.
type PostgreSQLRequestNoteRepository struct {
	db *sql.DB
}

// NewPostgreSQLRequestNoteRepository creates a new PostgreSQLRequestNoteRepository.
func NewPostgreSQLRequestNoteRepository(db *sql.DB) *PostgreSQLRequestNoteRepository {
	return &PostgreSQLRequestNoteRepository{db: db}
}

// Create inserts a communication note for a request.
func (r *PostgreSQLRequestNoteRepository) Create(ctx context.Context, note *domain.RequestNote) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO request_notes (id, request_id, author, body, created_at)
			  VALUES ($1, $2, $3, $4, NOW())`

	_, err := querier.ExecContext(ctx, query, note.ID, note.RequestID, note.Author, note.Body)
	if err != nil {
		return apperrors.Wrap(err, "failed to create request note")
	}

	return nil
}

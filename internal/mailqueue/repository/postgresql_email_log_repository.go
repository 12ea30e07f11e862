package repository

import (
	"context"
	"database/sql"

	"github.com/goformed/backoffice/internal/database"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

// PostgreSQLEmailLogRepository implements append-only EmailLog persistence for PostgreSQL.
type PostgreSQLEmailLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLEmailLogRepository creates a new PostgreSQL EmailLog repository.
func NewPostgreSQLEmailLogRepository(db *sql.DB) *PostgreSQLEmailLogRepository {
	return &PostgreSQLEmailLogRepository{db: db}
}

// Create inserts a new EmailLog row. Logs are write-once and never updated.
func (r *PostgreSQLEmailLogRepository) Create(ctx context.Context, log *domain.EmailLog) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO email_logs
			  (id, recipient, subject, status, provider, provider_message_id, error_message, template_name, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := querier.ExecContext(ctx, query,
		log.ID, log.Recipient, log.Subject, log.Status, log.Provider,
		log.ProviderMessageID, log.ErrorMessage, log.TemplateName,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create email log")
	}

	return nil
}

// List retrieves email logs ordered by creation time descending (newest first)
// with offset/limit pagination. Returns an empty slice when no rows match.
func (r *PostgreSQLEmailLogRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*domain.EmailLog, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, recipient, subject, status, provider, provider_message_id,
			         error_message, template_name, created_at
			  FROM email_logs
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list email logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	logs := make([]*domain.EmailLog, 0)
	for rows.Next() {
		var log domain.EmailLog
		var status string

		err := rows.Scan(
			&log.ID, &log.Recipient, &log.Subject, &status, &log.Provider,
			&log.ProviderMessageID, &log.ErrorMessage, &log.TemplateName, &log.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan email log")
		}

		log.Status = domain.EmailJobStatus(status)
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate email logs")
	}

	return logs, nil
}

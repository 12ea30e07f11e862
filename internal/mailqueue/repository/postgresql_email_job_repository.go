// Package repository provides data persistence implementations for mail queue entities.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/goformed/backoffice/internal/database"
	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

// PostgreSQLEmailJobRepository handles email job persistence for PostgreSQL.
type PostgreSQLEmailJobRepository struct {
	db *sql.DB
}

// NewPostgreSQLEmailJobRepository creates a new PostgreSQLEmailJobRepository.
func NewPostgreSQLEmailJobRepository(db *sql.DB) *PostgreSQLEmailJobRepository {
	return &PostgreSQLEmailJobRepository{db: db}
}

// Create inserts a new pending email job unless an equivalent job (same
// recipient and subject) was already enqueued within the dedup window.
// Returns true when the row was inserted, false when it was deduplicated.
func (r *PostgreSQLEmailJobRepository) Create(
	ctx context.Context,
	job *domain.EmailJob,
	dedupWindow time.Duration,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	templateJSON, err := json.Marshal(job.TemplateData)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal template data")
	}

	query := `INSERT INTO email_jobs
			  (id, recipient, subject, template_name, template_data, status, attempts, created_at, updated_at)
			  SELECT $1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
			  WHERE NOT EXISTS (
				  SELECT 1 FROM email_jobs
				  WHERE recipient = $2 AND subject = $3 AND created_at > NOW() - $8::interval
			  )`

	result, err := querier.ExecContext(ctx, query,
		job.ID, job.Recipient, job.Subject, job.TemplateName, templateJSON,
		job.Status, job.Attempts, dedupWindow.String(),
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to create email job")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read email job insert result")
	}

	return affected == 1, nil
}

// GetPendingJobs retrieves pending jobs below the retry ceiling, oldest first.
func (r *PostgreSQLEmailJobRepository) GetPendingJobs(
	ctx context.Context,
	limit int,
	maxAttempts int,
) ([]*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, recipient, subject, template_name, template_data, status, attempts,
			         last_attempt_at, error_message, created_at, updated_at
			  FROM email_jobs
			  WHERE status = $1 AND attempts < $2
			  ORDER BY created_at ASC
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, domain.EmailJobStatusPending, maxAttempts, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending email jobs")
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*domain.EmailJob
	for rows.Next() {
		job, err := scanEmailJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate email jobs")
	}

	return jobs, nil
}

// Update persists the mutable delivery fields of an email job.
func (r *PostgreSQLEmailJobRepository) Update(ctx context.Context, job *domain.EmailJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = $1, attempts = $2, last_attempt_at = $3, error_message = $4, updated_at = NOW()
			  WHERE id = $5`

	_, err := querier.ExecContext(ctx, query,
		job.Status, job.Attempts, job.LastAttemptAt, job.ErrorMessage, job.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update email job")
	}

	return nil
}

// CountPending returns the number of retriable pending jobs in the queue.
func (r *PostgreSQLEmailJobRepository) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM email_jobs WHERE status = $1 AND attempts < $2`

	var count int
	err := querier.QueryRowContext(ctx, query, domain.EmailJobStatusPending, maxAttempts).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending email jobs")
	}

	return count, nil
}

// CountEnqueuedSince returns the number of jobs enqueued after the given time.
// Backs the database-side dispatch rate-limit check.
func (r *PostgreSQLEmailJobRepository) CountEnqueuedSince(ctx context.Context, since time.Time) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM email_jobs WHERE created_at > $1`

	var count int
	err := querier.QueryRowContext(ctx, query, since).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count enqueued email jobs")
	}

	return count, nil
}

// rowScanner abstracts *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEmailJob scans one email job row including the JSON template data column.
func scanEmailJob(row rowScanner) (*domain.EmailJob, error) {
	var job domain.EmailJob
	var templateJSON []byte
	var status string

	err := row.Scan(
		&job.ID, &job.Recipient, &job.Subject, &job.TemplateName, &templateJSON,
		&status, &job.Attempts, &job.LastAttemptAt, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan email job")
	}

	job.Status = domain.EmailJobStatus(status)

	if templateJSON != nil {
		if err := json.Unmarshal(templateJSON, &job.TemplateData); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal template data")
		}
	}

	return &job, nil
}

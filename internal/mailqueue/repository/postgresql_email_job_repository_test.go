package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db, mock
}

func pendingJob() *domain.EmailJob {
	return &domain.EmailJob{
		ID:           uuid.Must(uuid.NewV7()),
		Recipient:    "customer@example.co.uk",
		Subject:      "Your company formation update",
		TemplateName: "admin_notification",
		TemplateData: map[string]any{"message": "Documents are ready."},
		Status:       domain.EmailJobStatusPending,
	}
}

func TestPostgreSQLEmailJobRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailJobRepository(db)
	job := pendingJob()

	mock.ExpectExec(`INSERT INTO email_jobs`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.Create(context.Background(), job, 24*time.Hour)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLEmailJobRepository_Create_Deduplicated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailJobRepository(db)
	job := pendingJob()

	// Duplicate within window: the guarded insert affects no rows
	mock.ExpectExec(`INSERT INTO email_jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Create(context.Background(), job, 24*time.Hour)
	assert.NoError(t, err)
	assert.False(t, inserted)
}

func TestPostgreSQLEmailJobRepository_GetPendingJobs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailJobRepository(db)

	id1 := uuid.Must(uuid.NewV7())
	id2 := uuid.Must(uuid.NewV7())
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "recipient", "subject", "template_name", "template_data", "status",
		"attempts", "last_attempt_at", "error_message", "created_at", "updated_at",
	}).
		AddRow(id1, "a@example.com", "s1", "admin_notification", []byte(`{"message":"one"}`),
			"pending", 0, nil, nil, now.Add(-time.Hour), now).
		AddRow(id2, "b@example.com", "s2", "admin_notification", []byte(`{"message":"two"}`),
			"pending", 1, nil, nil, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM email_jobs`).
		WithArgs(string(domain.EmailJobStatusPending), 3, 10).
		WillReturnRows(rows)

	jobs, err := repo.GetPendingJobs(context.Background(), 10, 3)
	assert.NoError(t, err)
	require.Len(t, jobs, 2)

	// FIFO: oldest enqueue first
	assert.Equal(t, id1, jobs[0].ID)
	assert.Equal(t, id2, jobs[1].ID)
	assert.Equal(t, "one", jobs[0].TemplateData["message"])
	assert.Equal(t, 1, jobs[1].Attempts)
}

func TestPostgreSQLEmailJobRepository_Update(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailJobRepository(db)

	job := pendingJob()
	now := time.Now()
	job.Status = domain.EmailJobStatusSent
	job.Attempts = 1
	job.LastAttemptAt = &now

	mock.ExpectExec(`UPDATE email_jobs`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), job)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLEmailJobRepository_CountPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailJobRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM email_jobs WHERE status`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.CountPending(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestPostgreSQLEmailJobRepository_CountEnqueuedSince(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailJobRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM email_jobs WHERE created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountEnqueuedSince(context.Background(), time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

func TestPostgreSQLEmailLogRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailLogRepository(db)

	messageID := "queued-as-4f2a"
	log := &domain.EmailLog{
		ID:                uuid.Must(uuid.NewV7()),
		Recipient:         "customer@example.co.uk",
		Subject:           "Your company formation update",
		Status:            domain.EmailJobStatusSent,
		Provider:          "smtp",
		ProviderMessageID: &messageID,
		TemplateName:      "admin_notification",
	}

	mock.ExpectExec(`INSERT INTO email_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), log)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLEmailLogRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailLogRepository(db)

	errMsg := "smtp: unexpected code 554"
	rows := sqlmock.NewRows([]string{
		"id", "recipient", "subject", "status", "provider",
		"provider_message_id", "error_message", "template_name", "created_at",
	}).
		AddRow(uuid.Must(uuid.NewV7()), "a@example.com", "s1", "sent", "smtp",
			"queued-as-1", nil, "admin_notification", time.Now()).
		AddRow(uuid.Must(uuid.NewV7()), "b@example.com", "s2", "failed", "smtp",
			nil, errMsg, "admin_notification", time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM email_logs`).
		WithArgs(50, 0).
		WillReturnRows(rows)

	logs, err := repo.List(context.Background(), 0, 50)
	assert.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.EmailJobStatusSent, logs[0].Status)
	assert.Equal(t, domain.EmailJobStatusFailed, logs[1].Status)
	assert.Equal(t, errMsg, *logs[1].ErrorMessage)
}

func TestPostgreSQLEmailLogRepository_List_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLEmailLogRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "recipient", "subject", "status", "provider",
		"provider_message_id", "error_message", "template_name", "created_at",
	})

	mock.ExpectQuery(`SELECT (.+) FROM email_logs`).
		WillReturnRows(rows)

	logs, err := repo.List(context.Background(), 0, 50)
	assert.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Len(t, logs, 0)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailLog is an append-only audit record of one delivery attempt outcome.
// Rows are write-once and never mutated.
type EmailLog struct {
	ID                uuid.UUID
	Recipient         string
	Subject           string
	Status            EmailJobStatus
	Provider          string
	ProviderMessageID *string
	ErrorMessage      *string
	TemplateName      string
	CreatedAt         time.Time
}

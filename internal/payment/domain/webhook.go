package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome classifies the result of processing one order webhook event.
type Outcome string

const (
	// OutcomeProcessed means payment data was written to a request.
	OutcomeProcessed Outcome = "processed"
	// OutcomeNotPaid means the order carried no payment signal; nothing was written.
	OutcomeNotPaid Outcome = "not_paid"
	// OutcomeUnresolved means no request id could be correlated; nothing was written.
	OutcomeUnresolved Outcome = "unresolved"
	// OutcomeRequestMissing means the correlated request row does not exist.
	OutcomeRequestMissing Outcome = "request_missing"
)

// WebhookLog is an append-only audit record of one received webhook event.
type WebhookLog struct {
	ID        uuid.UUID
	Source    string
	EventType string
	OrderID   string
	RequestID *uuid.UUID
	Outcome   Outcome
	Payload   []byte
	CreatedAt time.Time
}

// RequestNote is an append-only system or staff communication note
// attached to a company request.
type RequestNote struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	Author    string
	Body      string
	CreatedAt time.Time
}

// SystemAuthor identifies notes written by automated flows.
const SystemAuthor = "system"

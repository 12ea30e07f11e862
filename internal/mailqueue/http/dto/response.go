package dto

import (
	"time"

	"github.com/goformed/backoffice/internal/mailqueue/domain"
	"github.com/goformed/backoffice/internal/mailqueue/usecase"
)

// ProcessQueueResponse is returned by the queue processing endpoint.
type ProcessQueueResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Results *domain.ProcessSummary `json:"results"`
}

// MapSummaryToProcessResponse converts a processor summary to an API response.
func MapSummaryToProcessResponse(summary *domain.ProcessSummary) ProcessQueueResponse {
	message := "email queue processed"
	if summary.Processed == 0 {
		message = "no pending emails"
	}
	return ProcessQueueResponse{
		Success: true,
		Message: message,
		Results: summary,
	}
}

// SendAdminEmailResponse is returned by the admin dispatch endpoint.
type SendAdminEmailResponse struct {
	Enqueued     int `json:"enqueued"`
	Deduplicated int `json:"deduplicated"`
}

// MapDispatchResultToResponse converts a dispatch result to an API response.
func MapDispatchResultToResponse(result *usecase.DispatchResult) SendAdminEmailResponse {
	return SendAdminEmailResponse{
		Enqueued:     result.Enqueued,
		Deduplicated: result.Deduplicated,
	}
}

// EmailLogResponse represents one delivery audit row in API responses.
type EmailLogResponse struct {
	ID                string    `json:"id"`
	Recipient         string    `json:"recipient"`
	Subject           string    `json:"subject"`
	Status            string    `json:"status"`
	Provider          string    `json:"provider"`
	ProviderMessageID *string   `json:"provider_message_id,omitempty"`
	ErrorMessage      *string   `json:"error_message,omitempty"`
	TemplateName      string    `json:"template_name"`
	CreatedAt         time.Time `json:"created_at"`
}

// ListEmailLogsResponse is the paginated email log listing.
type ListEmailLogsResponse struct {
	Logs   []EmailLogResponse `json:"logs"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

// MapEmailLogsToListResponse converts domain logs to an API response.
func MapEmailLogsToListResponse(logs []*domain.EmailLog, offset, limit int) ListEmailLogsResponse {
	out := ListEmailLogsResponse{
		Logs:   make([]EmailLogResponse, 0, len(logs)),
		Offset: offset,
		Limit:  limit,
	}
	for _, log := range logs {
		out.Logs = append(out.Logs, EmailLogResponse{
			ID:                log.ID.String(),
			Recipient:         log.Recipient,
			Subject:           log.Subject,
			Status:            string(log.Status),
			Provider:          log.Provider,
			ProviderMessageID: log.ProviderMessageID,
			ErrorMessage:      log.ErrorMessage,
			TemplateName:      log.TemplateName,
			CreatedAt:         log.CreatedAt,
		})
	}
	return out
}

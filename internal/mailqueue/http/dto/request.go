// Package dto provides data transfer objects for mail queue HTTP handlers.
package dto

import (
	"github.com/goformed/backoffice/internal/mailqueue/usecase"
)

// SendAdminEmailRequest is the admin dispatch request body.
type SendAdminEmailRequest struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
}

// ToDispatchInput converts the request to the use case input.
// Validation happens in the use case so CLI and HTTP share the same rules.
func (r SendAdminEmailRequest) ToDispatchInput() usecase.DispatchInput {
	return usecase.DispatchInput{
		Recipients: r.Recipients,
		Subject:    r.Subject,
		Message:    r.Message,
	}
}

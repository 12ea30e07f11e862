// Package dto provides data transfer objects for payment HTTP handlers.
package dto

import (
	"time"

	"github.com/goformed/backoffice/internal/payment/usecase"
)

// WebhookResponse acknowledges a processed webhook delivery.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// MapWebhookResultToResponse converts a webhook result to an API response.
func MapWebhookResultToResponse(result *usecase.WebhookResult) WebhookResponse {
	return WebhookResponse{
		Received: true,
		Outcome:  string(result.Outcome),
	}
}

// CheckPaymentStatusRequest is the forced payment check request body.
type CheckPaymentStatusRequest struct {
	Force bool `json:"force"`
}

// PaymentStatusResponse reports the reconciled payment state of a request.
type PaymentStatusResponse struct {
	RequestID         string     `json:"request_id"`
	Status            string     `json:"status"`
	Paid              bool       `json:"paid"`
	CheckoutCompleted bool       `json:"checkout_completed"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

// MapCheckResultToResponse converts a poller check result to an API response.
func MapCheckResultToResponse(result *usecase.CheckResult) PaymentStatusResponse {
	response := PaymentStatusResponse{
		RequestID: result.Request.ID.String(),
		Status:    string(result.Request.Status),
		Paid:      result.Paid,
	}
	if result.Request.CartData != nil {
		response.CheckoutCompleted = result.Request.CartData.CheckoutCompleted
		response.PaidAt = result.Request.CartData.CompletedAt
	}
	if response.PaidAt == nil && result.Request.PaymentData != nil {
		response.PaidAt = result.Request.PaymentData.PaidAt
	}
	return response
}

// Package domain defines the payment reconciliation domain entities: the
// company formation request with its payment and cart state, webhook audit
// records, and communication notes.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/goformed/backoffice/internal/errors"
)

// RequestStatus is the lifecycle status of a company formation request.
type RequestStatus string

const (
	RequestStatusDraft          RequestStatus = "draft"
	RequestStatusPendingPayment RequestStatus = "pending_payment"
	RequestStatusProcessing     RequestStatus = "processing"
	RequestStatusInReview       RequestStatus = "in_review"
	RequestStatusDocumentsReady RequestStatus = "documents_ready"
	RequestStatusCompleted      RequestStatus = "completed"
	RequestStatusCancelled      RequestStatus = "cancelled"
	RequestStatusRejected       RequestStatus = "rejected"
)

// CompletedStatuses are statuses that imply payment was received, even when
// no payment record exists on the row.
var CompletedStatuses = map[RequestStatus]bool{
	RequestStatusCompleted:      true,
	RequestStatusProcessing:     true,
	RequestStatusInReview:       true,
	RequestStatusDocumentsReady: true,
}

// FinalStatuses are statuses after which payment polling is pointless.
var FinalStatuses = map[RequestStatus]bool{
	RequestStatusCompleted: true,
	RequestStatusCancelled: true,
	RequestStatusRejected:  true,
}

// PaymentData is the payment record attached to a request once an order
// event has been reconciled.
type PaymentData struct {
	OrderID         string     `json:"order_id"`
	OrderNumber     string     `json:"order_number"`
	TotalPrice      float64    `json:"total_price"`
	Currency        string     `json:"currency"`
	FinancialStatus string     `json:"financial_status"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	IsTestOrder     bool       `json:"is_test_order"`
}

// CartData tracks the storefront cart that collects payment for a request.
type CartData struct {
	CartID            string     `json:"cart_id"`
	CheckoutURL       string     `json:"checkout_url"`
	CheckoutCompleted bool       `json:"checkout_completed"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// CompanyRequest is a company formation request awaiting or past payment.
type CompanyRequest struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	CustomerEmail string
	Status        RequestStatus
	PaymentData   *PaymentData
	CartData      *CartData
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// paidFinancialStatuses are order financial states that count as payment.
var paidFinancialStatuses = map[string]bool{
	"paid":           true,
	"partially_paid": true,
}

// IsPaid reports whether the request has been paid for. Three independent
// signals are accepted, any one of which is sufficient: a payment record
// with a positive amount in a paid financial state, a lifecycle status that
// implies payment, or a completed checkout on the cart.
func (r *CompanyRequest) IsPaid() bool {
	if r.PaymentData != nil &&
		r.PaymentData.TotalPrice > 0 &&
		paidFinancialStatuses[r.PaymentData.FinancialStatus] {
		return true
	}
	if CompletedStatuses[r.Status] {
		return true
	}
	if r.CartData != nil && r.CartData.CheckoutCompleted {
		return true
	}
	return false
}

// Final reports whether the request reached a terminal lifecycle status.
func (r *CompanyRequest) Final() bool {
	return FinalStatuses[r.Status]
}

// Domain-specific errors for payment operations.
var (
	// ErrRequestNotFound indicates the company request does not exist.
	ErrRequestNotFound = apperrors.Wrap(apperrors.ErrNotFound, "company request not found")

	// ErrCheckTooSoon indicates a non-forced payment check inside the rate-limit window.
	ErrCheckTooSoon = apperrors.Wrap(apperrors.ErrRateLimited, "payment check rate limit exceeded")
)

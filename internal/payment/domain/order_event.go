package domain

import (
	"strconv"
	"time"
)

// NameValue is a generic name/value pair carried in order payloads.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OrderLineItem is one purchased line with its custom properties.
type OrderLineItem struct {
	Title      string      `json:"title"`
	Properties []NameValue `json:"properties"`
}

// OrderCustomer is the buyer identity on an order event.
type OrderCustomer struct {
	Email string `json:"email"`
}

// OrderEvent is the parsed payload of a storefront order webhook.
type OrderEvent struct {
	ID              int64           `json:"id"`
	OrderNumber     int64           `json:"order_number"`
	Email           string          `json:"email"`
	FinancialStatus string          `json:"financial_status"`
	TotalPrice      string          `json:"total_price"`
	Currency        string          `json:"currency"`
	Test            bool            `json:"test"`
	Note            string          `json:"note"`
	NoteAttributes  []NameValue     `json:"note_attributes"`
	Attributes      []NameValue     `json:"attributes"`
	LineItems       []OrderLineItem `json:"line_items"`
	Customer        *OrderCustomer  `json:"customer"`
	CreatedAt       *time.Time      `json:"created_at"`
}

// CustomerEmail returns the buyer email, preferring the customer object.
func (e *OrderEvent) CustomerEmail() string {
	if e.Customer != nil && e.Customer.Email != "" {
		return e.Customer.Email
	}
	return e.Email
}

// Amount parses the order total. Returns 0 when absent or malformed.
func (e *OrderEvent) Amount() float64 {
	amount, err := strconv.ParseFloat(e.TotalPrice, 64)
	if err != nil {
		return 0
	}
	return amount
}

// Paid reports whether the order event carries a payment signal: a paid
// financial status or a test-mode order, in both cases with a positive total.
func (e *OrderEvent) Paid() bool {
	if e.Amount() <= 0 {
		return false
	}
	return e.FinancialStatus == "paid" || e.Test
}

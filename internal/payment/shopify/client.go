// Package shopify implements the payment provider client against the
// Shopify Admin API. It is only consulted by the status poller; the webhook
// flow never calls out.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/payment/domain"
)

// Config holds Shopify Admin API settings.
type Config struct {
	// APIBaseURL is the shop admin API root, e.g.
	// https://example.myshopify.com/admin/api/2024-01
	APIBaseURL string
	// AccessToken authenticates admin API calls.
	AccessToken string
	// Timeout bounds one API call.
	Timeout time.Duration
}

// Client looks up orders on the Shopify Admin API.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a new Shopify client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// orderListResponse is the subset of the orders listing we consume.
type orderListResponse struct {
	Orders []struct {
		ID              int64  `json:"id"`
		FinancialStatus string `json:"financial_status"`
		TotalPrice      string `json:"total_price"`
		Test            bool   `json:"test"`
	} `json:"orders"`
}

// CheckOrderPaid looks for a paid order matching the request's cart.
// Returns false when the cart has no order yet or none of its orders carry
// a payment signal.
func (c *Client) CheckOrderPaid(ctx context.Context, request *domain.CompanyRequest) (bool, error) {
	if request.CartData == nil || request.CartData.CartID == "" {
		return false, nil
	}

	query := url.Values{}
	query.Set("cart_token", request.CartData.CartID)
	query.Set("status", "any")
	query.Set("fields", "id,financial_status,total_price,test")

	endpoint := fmt.Sprintf("%s/orders.json?%s", c.cfg.APIBaseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to build order lookup request")
	}
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, apperrors.Wrap(err, "order lookup failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, apperrors.Wrap(apperrors.ErrUnauthorized, "order lookup rejected by provider")
	}
	if resp.StatusCode != http.StatusOK {
		return false, apperrors.Wrap(
			fmt.Errorf("unexpected status %d", resp.StatusCode),
			"order lookup failed",
		)
	}

	var body orderListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, apperrors.Wrap(err, "failed to decode order lookup response")
	}

	for _, order := range body.Orders {
		amount, err := strconv.ParseFloat(order.TotalPrice, 64)
		if err != nil || amount <= 0 {
			continue
		}
		if order.FinancialStatus == "paid" || order.FinancialStatus == "partially_paid" || order.Test {
			return true, nil
		}
	}

	return false, nil
}

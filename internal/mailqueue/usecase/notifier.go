package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/goformed/backoffice/internal/errors"
)

// HTTPProcessorNotifier wakes the queue processor by invoking its HTTP
// endpoint. Used when the dispatch flow and the processor run as separate
// deployments.
type HTTPProcessorNotifier struct {
	url    string
	client *http.Client
}

// NewHTTPProcessorNotifier creates a notifier targeting the processor URL.
func NewHTTPProcessorNotifier(url string) *HTTPProcessorNotifier {
	return &HTTPProcessorNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyPending fires one POST at the processor endpoint. The response body
// is discarded; only transport errors and non-2xx statuses are reported.
func (n *HTTPProcessorNotifier) NotifyPending(ctx context.Context) error {
	if n.url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, nil)
	if err != nil {
		return apperrors.Wrap(err, "failed to build processor wake-up request")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, "processor wake-up request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.Wrap(
			fmt.Errorf("unexpected status %d", resp.StatusCode),
			"processor wake-up rejected",
		)
	}

	return nil
}

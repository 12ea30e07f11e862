package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goformed/backoffice/internal/app"
	"github.com/goformed/backoffice/internal/config"
	"github.com/goformed/backoffice/internal/mailqueue/usecase"
)

// RunSendAdminEmail enqueues an admin notification email for the given
// recipients. Delivery happens asynchronously via the queue processor.
func RunSendAdminEmail(ctx context.Context, recipients []string, subject, message string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	dispatch, err := container.DispatchUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	result, err := dispatch.SendAdminEmail(ctx, usecase.DispatchInput{
		Recipients: recipients,
		Subject:    subject,
		Message:    message,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue admin email: %w", err)
	}

	logger.Info("admin email enqueued",
		slog.Int("enqueued", result.Enqueued),
		slog.Int("deduplicated", result.Deduplicated),
	)

	return nil
}

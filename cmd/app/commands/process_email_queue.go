package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goformed/backoffice/internal/app"
	"github.com/goformed/backoffice/internal/config"
)

// RunProcessEmailQueue processes one batch of pending email jobs and exits.
// Useful for cron-driven deployments where no long-running processor is wanted.
func RunProcessEmailQueue(ctx context.Context) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	processor, err := container.ProcessorUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize queue processor: %w", err)
	}

	summary, err := processor.ProcessQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to process email queue: %w", err)
	}

	logger.Info("email queue processed",
		slog.Int("processed", summary.Processed),
		slog.Int("sent", summary.Sent),
		slog.Int("failed", summary.Failed),
		slog.Int("remaining_pending", summary.RemainingPending),
	)

	for _, e := range summary.Errors {
		logger.Warn("delivery error", slog.String("detail", e))
	}

	return nil
}

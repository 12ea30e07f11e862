// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/goformed/backoffice/cmd/app/commands"
)

var version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "backoffice",
		Usage:   "Company formation backoffice service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "process-email-queue",
				Usage: "Process one batch of pending email jobs and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunProcessEmailQueue(ctx)
				},
			},
			{
				Name:  "send-admin-email",
				Usage: "Enqueue an admin notification email",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "recipient",
						Aliases:  []string{"r"},
						Required: true,
						Usage:    "Recipient email address (repeatable)",
					},
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "Email subject",
					},
					&cli.StringFlag{
						Name:     "message",
						Aliases:  []string{"m"},
						Required: true,
						Usage:    "Email message body",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSendAdminEmail(
						ctx,
						cmd.StringSlice("recipient"),
						cmd.String("subject"),
						cmd.String("message"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/venturehq/venture/pkg/cmd"
	"github.com/venturehq/venture/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "venture-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute dispatched jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "channel",
				Usage:   "Queue channel provider (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("CHANNEL_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "queues",
				Usage:   "Comma-separated queue names to consume",
				Value:   "default",
				Sources: cli.EnvVars("QUEUES"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the delayed-dispatch store (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("venture-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Venture Worker")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			worker := NewWorker(
				workerID,
				store,
				command.String("channel"),
				command.String("redis-url"),
				strings.Split(command.String("queues"), ","),
				logger,
			)

			if err := worker.Run(ctx); err != nil {
				logger.ErrorContext(ctx, "Worker stopped", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

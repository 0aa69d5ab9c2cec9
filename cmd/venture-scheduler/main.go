package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/venturehq/venture/pkg/cmd"
	"github.com/venturehq/venture/pkg/log"
)

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "venture-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Start workflows on cron schedules",
		Flags: []cli.Flag{
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
				Name:     "definitions-path",
				Usage:    "Directory of JSON workflow definitions",
				Required: true,
				Sources:  cli.EnvVars("DEFINITIONS_PATH"),
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

			logger.InfoContext(ctx, "Initializing Venture Scheduler")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			daemon := NewDaemon(
				store,
				command.String("channel"),
				command.String("redis-url"),
				command.String("definitions-path"),
				logger,
			)

			if err := daemon.Run(ctx); err != nil {
				logger.ErrorContext(ctx, "Scheduler stopped", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

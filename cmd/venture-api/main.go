package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/venturehq/venture/pkg/cmd"
	"github.com/venturehq/venture/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "venture-api",
		Usage:                 "Start and manage workflow runs over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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

			logger.InfoContext(ctx, "Initializing Venture API")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			api := NewAPI(logger, store, command.String("channel"), command.String("redis-url"))

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

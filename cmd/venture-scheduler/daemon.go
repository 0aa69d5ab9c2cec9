// Package main provides the Venture scheduler daemon: it loads workflow
// definitions from disk and starts a run for each on its cron schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/venturehq/venture/pkg/cmd"
	"github.com/venturehq/venture/pkg/eventbus"
	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/queue"
	"github.com/venturehq/venture/pkg/queue/redisdelay"
	"github.com/venturehq/venture/pkg/schedule"
	"github.com/venturehq/venture/pkg/workflow"
)

type Daemon struct {
	persistence     persistence.Persistence
	channel         string
	redisURL        string
	definitionsPath string
	logger          *slog.Logger
}

func NewDaemon(store persistence.Persistence, channel, redisURL, definitionsPath string, logger *slog.Logger) *Daemon {
	return &Daemon{
		persistence:     store,
		channel:         channel,
		redisURL:        redisURL,
		definitionsPath: definitionsPath,
		logger:          logger,
	}
}

// Run registers every scheduled definition and blocks until a termination
// signal. Definitions without a schedule are skipped with a warning; they
// are started on demand through the API instead.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, sub := cmd.NewChannel(d.channel, "venture-scheduler", d.logger)

	var dispatcherOpts []queue.DispatcherOption
	if d.redisURL != "" {
		delayStore := redisdelay.NewStore(cmd.NewRedisClient(d.redisURL), d.logger)
		dispatcherOpts = append(dispatcherOpts, queue.WithDelayStore(delayStore))
	}

	dispatcher := queue.NewWatermillDispatcher(pub, d.logger, dispatcherOpts...)
	bus := eventbus.NewWatermillEventBus(pub, sub)
	scheduler := workflow.NewScheduler(d.persistence, dispatcher, d.logger,
		workflow.WithEventBus(bus))

	runner := schedule.NewRunner(scheduler, d.logger)

	definitions, err := d.loadDefinitions()
	if err != nil {
		return err
	}

	registered := 0

	for _, def := range definitions {
		if def.Schedule == "" {
			d.logger.WarnContext(ctx, "Definition has no schedule, skipping", "definition", def.Name)

			continue
		}

		if err := runner.Register(def); err != nil {
			return err
		}

		registered++
	}

	if registered == 0 {
		return fmt.Errorf("no scheduled definitions found in %s", d.definitionsPath)
	}

	runner.Start()
	defer func() {
		if err := runner.Stop(context.Background()); err != nil {
			d.logger.Error("Failed to stop schedule runner", "error", err)
		}
	}()

	<-ctx.Done()

	d.logger.InfoContext(ctx, "Scheduler shutting down")

	return nil
}

func (d *Daemon) loadDefinitions() ([]*workflow.Definition, error) {
	paths, err := filepath.Glob(filepath.Join(d.definitionsPath, "*.json"))
	if err != nil {
		return nil, err
	}

	definitions := make([]*workflow.Definition, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
		}

		def, err := workflow.ParseDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse definition %s: %w", path, err)
		}

		definitions = append(definitions, def)
	}

	return definitions, nil
}

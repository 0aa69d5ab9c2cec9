// Package main provides the Venture worker implementation: it consumes
// dispatched jobs from the queue, executes them through the registry and
// reports completions back to the scheduler.
package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/venturehq/venture/pkg/cmd"
	"github.com/venturehq/venture/pkg/otelhelper"
	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/queue"
	"github.com/venturehq/venture/pkg/queue/redisdelay"
	"github.com/venturehq/venture/pkg/workflow"
)

const delayPollInterval = 1 * time.Second

type Worker struct {
	id          string
	persistence persistence.Persistence
	channel     string
	redisURL    string
	queues      []string
	logger      *slog.Logger
}

func NewWorker(id string, store persistence.Persistence, channel, redisURL string, queues []string, logger *slog.Logger) *Worker {
	return &Worker{
		id:          id,
		persistence: store,
		channel:     channel,
		redisURL:    redisURL,
		queues:      queues,
		logger:      logger,
	}
}

// Run consumes the configured queues until the context is cancelled or a
// termination signal arrives. When a Redis URL is configured, the worker
// also polls the delayed-dispatch store and publishes due jobs.
func (w *Worker) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, sub := cmd.NewChannel(w.channel, "venture-worker", w.logger)

	var dispatcherOpts []queue.DispatcherOption

	var delayStore *redisdelay.Store

	if w.redisURL != "" {
		delayStore = redisdelay.NewStore(cmd.NewRedisClient(w.redisURL), w.logger)
		dispatcherOpts = append(dispatcherOpts, queue.WithDelayStore(delayStore))
	}

	dispatcher := queue.NewWatermillDispatcher(pub, w.logger, dispatcherOpts...)

	var schedulerOpts []workflow.SchedulerOption

	if otelhelper.Enabled() {
		tracer, err := otelhelper.NewTracer(ctx, "venture-worker")
		if err != nil {
			return err
		}

		schedulerOpts = append(schedulerOpts, workflow.WithTracer(tracer))
	}

	// The scheduler doubles as the completion reporter: it resumes runs
	// from persistence, so this worker need not be the process that
	// started them.
	scheduler := workflow.NewScheduler(w.persistence, dispatcher, w.logger, schedulerOpts...)

	if delayStore != nil {
		go delayStore.Run(ctx, delayPollInterval, func(ctx context.Context, job *queue.DispatchedJob) error {
			return dispatcher.Publish(ctx, job)
		})
	}

	registry := cmd.NewRegistry(w.logger)
	consumer := queue.NewConsumer(sub, registry, scheduler, w.logger)

	w.logger.InfoContext(ctx, "Worker consuming queues", "queues", w.queues)

	if err := consumer.Start(ctx, w.queues...); err != nil {
		return err
	}

	<-ctx.Done()

	w.logger.InfoContext(ctx, "Worker shutting down")

	return nil
}

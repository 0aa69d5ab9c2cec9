// Package main provides the Venture API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/venturehq/venture/pkg/cmd"
	"github.com/venturehq/venture/pkg/eventbus"
	"github.com/venturehq/venture/pkg/otelhelper"
	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/queue"
	"github.com/venturehq/venture/pkg/queue/redisdelay"
	"github.com/venturehq/venture/pkg/web"
	"github.com/venturehq/venture/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	channel     string
	redisURL    string
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, store persistence.Persistence, channel, redisURL string) *API {
	return &API{
		logger:      logger,
		persistence: store,
		channel:     channel,
		redisURL:    redisURL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	pub, sub := cmd.NewChannel(a.channel, "venture-api", a.logger)

	var dispatcherOpts []queue.DispatcherOption
	if a.redisURL != "" {
		delayStore := redisdelay.NewStore(cmd.NewRedisClient(a.redisURL), a.logger)
		dispatcherOpts = append(dispatcherOpts, queue.WithDelayStore(delayStore))
	}

	dispatcher := queue.NewWatermillDispatcher(pub, a.logger, dispatcherOpts...)
	bus := eventbus.NewWatermillEventBus(pub, sub)

	schedulerOpts := []workflow.SchedulerOption{workflow.WithEventBus(bus)}

	if otelhelper.Enabled() {
		tracer, err := otelhelper.NewTracer(context.Background(), "venture-api")
		if err != nil {
			a.logger.Warn("Tracing disabled: tracer setup failed", "error", err)
		} else {
			schedulerOpts = append(schedulerOpts, workflow.WithTracer(tracer))
		}
	}

	scheduler := workflow.NewScheduler(a.persistence, dispatcher, a.logger, schedulerOpts...)

	registry := cmd.NewRegistry(a.logger)
	handlers := web.NewAPIHandlers(scheduler, a.persistence, registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Venture API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.StartWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/cancel", handlers.CancelWorkflow)

	// Job endpoints:
	w.Get("/:id/jobs", handlers.GetWorkflowJobs)
	w.Post("/:id/jobs/:jobId/start", handlers.StartGatedJob)
	w.Post("/:id/jobs/:jobId/retry", handlers.RetryJob)

	app.Get("/job-types", handlers.GetJobTypes)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}

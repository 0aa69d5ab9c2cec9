package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/venturehq/venture/pkg/graph"
	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleSchedulerError maps scheduler and persistence errors to problem
// responses. Definition errors are bad requests, invalid state transitions
// are conflicts, unknown ids are 404s, everything unexpected is a 500
// without detail.
func handleSchedulerError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("workflow_not_found").
			WithDetail("workflow not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsJobNotFound(err), errors.Is(err, graph.ErrNodeNotFound):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("job_not_found").
			WithDetail("job not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case graph.IsUnresolvableDependency(err),
		graph.IsDuplicateJob(err),
		graph.IsCycleDetected(err):
		// Definition-time errors are caller errors; nothing was persisted.
		return badRequest(c, err.Error())

	case errors.Is(err, workflow.ErrJobNotGated),
		errors.Is(err, workflow.ErrJobNotFailed),
		errors.Is(err, workflow.ErrWorkflowCancelled):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("invalid_state").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}

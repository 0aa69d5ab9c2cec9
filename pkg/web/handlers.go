// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/registry"
	"github.com/venturehq/venture/pkg/workflow"
)

type APIHandlers struct {
	scheduler   *workflow.Scheduler
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(
	scheduler *workflow.Scheduler,
	persistence persistence.Persistence,
	registry *registry.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		scheduler:   scheduler,
		persistence: persistence,
		registry:    registry,
		validator:   validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	responses := make([]WorkflowResponse, 0, len(workflows))
	for _, instance := range workflows {
		responses = append(responses, TransformWorkflowResponse(instance))
	}

	return c.JSON(responses)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	instance, err := h.persistence.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(instance))
}

func (h *APIHandlers) GetWorkflowJobs(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.persistence.WorkflowByID(c.Context(), id); err != nil {
		return handleSchedulerError(c, err)
	}

	jobs, err := h.persistence.JobsByWorkflowID(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, TransformJobResponse(job))
	}

	return c.JSON(responses)
}

// StartWorkflow accepts a JSON workflow definition, compiles it and starts
// a run. Every job type must be registered before the run is accepted.
func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	def, err := workflow.ParseDefinition(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	for _, job := range def.Jobs {
		if !h.registry.IsRegistered(job.Type) {
			return badRequest(c, fmt.Sprintf("unknown job type %q", job.Type))
		}
	}

	instance, err := h.scheduler.StartDefinition(c.Context(), def)
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformWorkflowResponse(instance))
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.scheduler.Cancel(c.Context(), id); err != nil {
		return handleSchedulerError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) StartGatedJob(c fiber.Ctx) error {
	id := c.Params("id")
	jobID := c.Params("jobId")

	if id == "" || jobID == "" {
		return badRequest(c, "Workflow ID and job ID are required")
	}

	if err := h.scheduler.StartGatedJob(c.Context(), id, jobID); err != nil {
		return handleSchedulerError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) RetryJob(c fiber.Ctx) error {
	id := c.Params("id")
	jobID := c.Params("jobId")

	if id == "" || jobID == "" {
		return badRequest(c, "Workflow ID and job ID are required")
	}

	if err := h.scheduler.RetryJob(c.Context(), id, jobID); err != nil {
		return handleSchedulerError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	instance, err := h.persistence.WorkflowByID(c.Context(), id)
	if err != nil {
		return handleSchedulerError(c, err)
	}

	if !instance.IsFinished() && !instance.IsCancelled() {
		return badRequest(c, "Cannot delete a running workflow; cancel it first")
	}

	if err := h.persistence.DeleteWorkflow(c.Context(), id); err != nil {
		return handleSchedulerError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetJobTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"types": h.registry.Types()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *APIHandlers) NotFound(c fiber.Ctx) error {
	return notFound(c, "resource not found")
}

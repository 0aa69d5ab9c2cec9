// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"time"

	"github.com/venturehq/venture/pkg/models"
)

// WorkflowResponse is the API projection of a workflow instance.
type WorkflowResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	JobCount       int        `json:"job_count"`
	JobsProcessed  int        `json:"jobs_processed"`
	JobsFailed     int        `json:"jobs_failed"`
	FinishedJobIDs []string   `json:"finished_job_ids"`
	Finished       bool       `json:"finished"`
	Cancelled      bool       `json:"cancelled"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func TransformWorkflowResponse(instance *models.WorkflowInstance) WorkflowResponse {
	return WorkflowResponse{
		ID:             instance.ID,
		Name:           instance.Name,
		JobCount:       instance.JobCount,
		JobsProcessed:  instance.JobsProcessed,
		JobsFailed:     instance.JobsFailed,
		FinishedJobIDs: instance.FinishedJobIDs,
		Finished:       instance.IsFinished(),
		Cancelled:      instance.IsCancelled(),
		StartedAt:      instance.StartedAt,
		FinishedAt:     instance.FinishedAt,
		CancelledAt:    instance.CancelledAt,
		CreatedAt:      instance.CreatedAt,
		UpdatedAt:      instance.UpdatedAt,
	}
}

// JobResponse is the API projection of a job node, status included.
type JobResponse struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Name         string     `json:"name"`
	Dependencies []string   `json:"dependencies"`
	Queue        string     `json:"queue,omitempty"`
	Gated        bool       `json:"gated"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	GatedAt      *time.Time `json:"gated_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

func TransformJobResponse(job *models.JobNode) JobResponse {
	status := job.Status
	if status == "" {
		status = models.JobStatusPending
	}

	return JobResponse{
		ID:           job.ID,
		Type:         job.Type,
		Name:         job.Name,
		Dependencies: job.Dependencies,
		Queue:        job.Queue.Queue,
		Gated:        job.Gated,
		Status:       string(status),
		StartedAt:    job.StartedAt,
		GatedAt:      job.GatedAt,
		FinishedAt:   job.FinishedAt,
		FailedAt:     job.FailedAt,
		Error:        job.Error,
	}
}

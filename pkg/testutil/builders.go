// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/venturehq/venture/pkg/models"
)

// CreateTestJob creates a pending JobNode with defaults that can be
// overridden.
func CreateTestJob(overrides ...func(*models.JobNode)) *models.JobNode {
	job := &models.JobNode{
		ID:     uuid.New().String(),
		Type:   "log",
		Name:   "Test Job",
		Params: map[string]any{"message": "test", "level": "info"},
		Status: models.JobStatusPending,
	}

	for _, override := range overrides {
		override(job)
	}

	return job
}

// WithJobID sets a fixed job id.
func WithJobID(id string) func(*models.JobNode) {
	return func(job *models.JobNode) {
		job.ID = id
	}
}

// WithDependencies sets the job's dependency list.
func WithDependencies(ids ...string) func(*models.JobNode) {
	return func(job *models.JobNode) {
		job.Dependencies = ids
	}
}

// WithGated marks the job as gated.
func WithGated() func(*models.JobNode) {
	return func(job *models.JobNode) {
		job.Gated = true
	}
}

// WithStatus sets the job status.
func WithStatus(status models.JobStatus) func(*models.JobNode) {
	return func(job *models.JobNode) {
		job.Status = status
	}
}

// CreateTestWorkflow creates a started WorkflowInstance with defaults that
// can be overridden.
func CreateTestWorkflow(jobCount int, overrides ...func(*models.WorkflowInstance)) *models.WorkflowInstance {
	now := time.Now().UTC()

	instance := &models.WorkflowInstance{
		ID:             uuid.New().String(),
		Name:           "test workflow",
		JobCount:       jobCount,
		FinishedJobIDs: []string{},
		StartedAt:      &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(instance)
	}

	return instance
}

// Package persistence provides data storage abstraction for workflow instances and their jobs.
package persistence

import (
	"context"

	"github.com/venturehq/venture/pkg/models"
)

// Persistence durably records workflow instances and per-run job state. The
// engine saves around every lifecycle event and expects read-back
// consistency: a save followed by a read returns the saved state.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.WorkflowInstance, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowInstance) error
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SaveJob(ctx context.Context, workflowID string, job *models.JobNode) error
	JobByID(ctx context.Context, workflowID, jobID string) (*models.JobNode, error)
	JobsByWorkflowID(ctx context.Context, workflowID string) ([]*models.JobNode, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

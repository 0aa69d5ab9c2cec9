// Package queue is the boundary between the engine and its external
// execution substrate. The scheduler hands jobs to a Dispatcher; workers
// consume them, run the registered handler and report completion back.
package queue

import (
	"context"
	"time"

	"github.com/venturehq/venture/pkg/models"
)

// DispatchedJob is the wire form of a job handed to the execution substrate.
type DispatchedJob struct {
	WorkflowID string          `json:"workflow_id"`
	JobID      string          `json:"job_id"`
	Type       string          `json:"type"`
	Name       string          `json:"name"`
	Params     map[string]any  `json:"params,omitempty"`
	Queue      models.QueueRef `json:"queue"`
	Delay      *time.Time      `json:"delay,omitempty"`
}

// Dispatcher hands a job to the execution substrate. Implementations must
// honor the job's delay and queue routing.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *DispatchedJob) error
}

// DelayStore parks jobs whose dispatch time has not arrived yet. A poller
// on the worker side publishes them once due.
type DelayStore interface {
	Park(ctx context.Context, job *DispatchedJob, due time.Time) error
}

// Reporter receives completion callbacks from the worker side. The
// scheduler implements it.
type Reporter interface {
	OnJobFinished(ctx context.Context, workflowID, jobID string) error
	OnJobFailed(ctx context.Context, workflowID, jobID string, jobErr error) error
}

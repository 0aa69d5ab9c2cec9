package models

import "time"

// WorkflowInstance is one run of a job dependency graph. Counters and the
// finished-job set are mutated by the state machine on every job completion.
// Updates are serialized per instance: within a process by the scheduler's
// run lock, across processes by the Version compare-and-swap in SaveWorkflow.
type WorkflowInstance struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"            validate:"required,min=3"`
	JobCount       int        `json:"job_count"`
	JobsProcessed  int        `json:"jobs_processed"`
	JobsFailed     int        `json:"jobs_failed"`
	FinishedJobIDs []string   `json:"finished_job_ids"`
	FailedJobIDs   []string   `json:"failed_job_ids,omitempty"`
	Version        int64      `json:"version"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AllJobsFinished reports whether every job in the run succeeded.
func (w *WorkflowInstance) AllJobsFinished() bool {
	return w.JobsProcessed == w.JobCount
}

// HasRan reports whether every job resolved, regardless of outcome. A
// workflow can have ran without being finished when some jobs failed.
func (w *WorkflowInstance) HasRan() bool {
	return w.JobsProcessed+w.JobsFailed == w.JobCount
}

func (w *WorkflowInstance) IsFinished() bool {
	return w.FinishedAt != nil
}

func (w *WorkflowInstance) IsCancelled() bool {
	return w.CancelledAt != nil
}

// HasFinishedJob reports whether the job with the given id finished in this run.
func (w *WorkflowInstance) HasFinishedJob(id string) bool {
	for _, finished := range w.FinishedJobIDs {
		if finished == id {
			return true
		}
	}

	return false
}

// HasFailedJob reports whether the failure of the job with the given id has
// been recorded on this instance. Retried jobs leave the set again.
func (w *WorkflowInstance) HasFailedJob(id string) bool {
	for _, failed := range w.FailedJobIDs {
		if failed == id {
			return true
		}
	}

	return false
}

// FinishedSet returns the finished-job ids as a set for frontier evaluation.
func (w *WorkflowInstance) FinishedSet() map[string]bool {
	set := make(map[string]bool, len(w.FinishedJobIDs))
	for _, id := range w.FinishedJobIDs {
		set[id] = true
	}

	return set
}

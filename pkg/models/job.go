// Package models defines the core domain models for dependency-aware workflow orchestration.
package models

import "time"

// JobStatus defines the possible states of a job within a workflow run.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"    // Waiting for dependencies
	JobStatusGated      JobStatus = "gated"      // Dependency-ready, held for manual start
	JobStatusProcessing JobStatus = "processing" // Dispatched to the execution substrate
	JobStatusFinished   JobStatus = "finished"   // Terminal: succeeded
	JobStatusFailed     JobStatus = "failed"     // Terminal: failed
)

// QueueRef routes a job to a queue on a named connection. Both fields are
// opaque to the engine; the execution substrate interprets them.
type QueueRef struct {
	Queue      string `json:"queue,omitempty"`
	Connection string `json:"connection,omitempty"`
}

// JobNode is a unit of work in a workflow graph. Structure (id, dependencies,
// routing) is immutable once the graph is sealed; only the run-state fields
// below are written afterwards, and only by the state machine.
type JobNode struct {
	ID           string         `json:"id"           validate:"required"`
	Type         string         `json:"type"         validate:"required"`
	Name         string         `json:"name"`
	Dependencies []string       `json:"dependencies"` // Direct predecessors only
	Position     int            `json:"position"`     // Insertion order, dispatch tie-break
	Delay        *time.Time     `json:"delay,omitempty"`
	Queue        QueueRef       `json:"queue"`
	Gated        bool           `json:"gated"`
	Params       map[string]any `json:"params,omitempty"`

	// Run state, scoped to one workflow instance.
	Status     JobStatus  `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	GatedAt    *time.Time `json:"gated_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	FailedAt   *time.Time `json:"failed_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func (j *JobNode) IsPending() bool {
	return j.Status == JobStatusPending || j.Status == ""
}

func (j *JobNode) IsGated() bool {
	return j.Status == JobStatusGated
}

func (j *JobNode) IsProcessing() bool {
	return j.Status == JobStatusProcessing
}

func (j *JobNode) HasFinished() bool {
	return j.Status == JobStatusFinished
}

func (j *JobNode) HasFailed() bool {
	return j.Status == JobStatusFailed
}

// DependsOn reports whether id is a direct dependency of the job.
func (j *JobNode) DependsOn(id string) bool {
	for _, dep := range j.Dependencies {
		if dep == id {
			return true
		}
	}

	return false
}

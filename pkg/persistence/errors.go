// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow instance was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow instance with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrJobNotFound indicates a job was not found within the given workflow.
	ErrJobNotFound = errors.New("job not found")

	// ErrVersionConflict indicates a SaveWorkflow lost the compare-and-swap
	// against a concurrent writer. The caller reloads and retries.
	ErrVersionConflict = errors.New("workflow version conflict")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "WorkflowByID", "SaveWorkflow")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// JobError wraps job-related errors with additional context.
type JobError struct {
	Op         string // Operation being performed
	WorkflowID string // Workflow ID
	JobID      string // Job ID
	Err        error  // Underlying error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s operation failed for job %s in workflow %s: %v", e.Op, e.JobID, e.WorkflowID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func (e *JobError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJobError creates a new job error with context.
func NewJobError(op, workflowID, jobID string, err error) *JobError {
	return &JobError{
		Op:         op,
		WorkflowID: workflowID,
		JobID:      jobID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsJobNotFound checks if an error indicates a job was not found.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

// IsVersionConflict checks if an error indicates a lost compare-and-swap.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

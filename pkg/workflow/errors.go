// Package workflow runs job dependency graphs: it tracks per-job and
// per-workflow state and dispatches jobs whose dependencies are satisfied.
package workflow

import (
	"errors"
	"fmt"
)

// State-transition preconditions. Violating one is a programmer error on
// the caller's side, raised immediately.
var (
	// ErrJobNotGated indicates a manual start was requested for a job that
	// is not being held at a gate.
	ErrJobNotGated = errors.New("job is not gated")

	// ErrJobNotGateable indicates an attempt to gate a job that was not
	// defined as gated.
	ErrJobNotGateable = errors.New("job is not defined as gated")

	// ErrJobNotFailed indicates a retry was requested for a job that has
	// not failed.
	ErrJobNotFailed = errors.New("job has not failed")

	// ErrWorkflowCancelled indicates the operation would dispatch work on
	// a cancelled workflow.
	ErrWorkflowCancelled = errors.New("workflow is cancelled")
)

// StateError wraps an invalid state transition with the job involved and
// the status it was actually in.
type StateError struct {
	WorkflowID string
	JobID      string
	Status     string
	Err        error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid transition for job %s in workflow %s (status %s): %v",
		e.JobID, e.WorkflowID, e.Status, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

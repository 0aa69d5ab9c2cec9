package workflow

import (
	"time"

	"github.com/venturehq/venture/pkg/models"
)

// JobState governs the run state of a single job node. Implementations
// write only the node's status fields; graph structure is never touched.
type JobState interface {
	IsPending() bool
	IsGated() bool
	IsProcessing() bool
	HasFinished() bool
	HasFailed() bool

	// CanRun is the dispatch predicate: pending, not gated, and every
	// dependency finished.
	CanRun(finished map[string]bool) bool

	// Transition re-evaluates the node after some dependency finished. It
	// is a no-op unless the node is pending with all dependencies
	// finished; gated nodes move to gated and are not dispatchable. Safe
	// to call redundantly.
	Transition(finished map[string]bool, now time.Time) (dispatchable bool, err error)

	MarkProcessing(now time.Time)
	MarkGated(now time.Time) error
	MarkFinished(now time.Time)
	MarkFailed(now time.Time, jobErr error)
}

// WorkflowState governs the counters and terminal flags of one run.
type WorkflowState interface {
	AllJobsFinished() bool
	HasRan() bool
	IsFinished() bool
	IsCancelled() bool

	RecordFinishedJob(jobID string, now time.Time)
	RecordFailedJob(jobID string, now time.Time)
	RecordRetriedJob(jobID string, now time.Time)

	MarkFinished(now time.Time)
	// MarkCancelled sets the cancellation timestamp if unset and reports
	// whether anything changed. Repeated calls never move the timestamp.
	MarkCancelled(now time.Time) bool
}

// NewJobState wraps a job node with its state machine.
func NewJobState(node *models.JobNode) JobState {
	return &jobState{node: node}
}

type jobState struct {
	node *models.JobNode
}

func (s *jobState) IsPending() bool    { return s.node.IsPending() }
func (s *jobState) IsGated() bool      { return s.node.IsGated() }
func (s *jobState) IsProcessing() bool { return s.node.IsProcessing() }
func (s *jobState) HasFinished() bool  { return s.node.HasFinished() }
func (s *jobState) HasFailed() bool    { return s.node.HasFailed() }

func (s *jobState) dependenciesFinished(finished map[string]bool) bool {
	for _, dep := range s.node.Dependencies {
		if !finished[dep] {
			return false
		}
	}

	return true
}

func (s *jobState) CanRun(finished map[string]bool) bool {
	return s.node.IsPending() && !s.node.Gated && s.dependenciesFinished(finished)
}

func (s *jobState) Transition(finished map[string]bool, now time.Time) (bool, error) {
	if !s.node.IsPending() {
		return false, nil
	}

	if !s.dependenciesFinished(finished) {
		return false, nil
	}

	if s.node.Gated {
		return false, s.MarkGated(now)
	}

	return true, nil
}

func (s *jobState) MarkProcessing(now time.Time) {
	s.node.Status = models.JobStatusProcessing
	s.node.StartedAt = &now
}

func (s *jobState) MarkGated(now time.Time) error {
	if !s.node.Gated {
		return ErrJobNotGateable
	}

	s.node.Status = models.JobStatusGated
	s.node.GatedAt = &now

	return nil
}

func (s *jobState) MarkFinished(now time.Time) {
	s.node.Status = models.JobStatusFinished
	s.node.FinishedAt = &now
}

func (s *jobState) MarkFailed(now time.Time, jobErr error) {
	s.node.Status = models.JobStatusFailed
	s.node.FailedAt = &now

	if jobErr != nil {
		s.node.Error = jobErr.Error()
	}
}

// NewWorkflowState wraps a workflow instance with its state machine.
func NewWorkflowState(instance *models.WorkflowInstance) WorkflowState {
	return &workflowState{instance: instance}
}

type workflowState struct {
	instance *models.WorkflowInstance
}

func (s *workflowState) AllJobsFinished() bool { return s.instance.AllJobsFinished() }
func (s *workflowState) HasRan() bool          { return s.instance.HasRan() }
func (s *workflowState) IsFinished() bool      { return s.instance.IsFinished() }
func (s *workflowState) IsCancelled() bool     { return s.instance.IsCancelled() }

func (s *workflowState) RecordFinishedJob(jobID string, now time.Time) {
	s.instance.JobsProcessed++
	s.instance.FinishedJobIDs = append(s.instance.FinishedJobIDs, jobID)
	s.instance.UpdatedAt = now
}

func (s *workflowState) RecordFailedJob(jobID string, now time.Time) {
	s.instance.JobsFailed++
	s.instance.FailedJobIDs = append(s.instance.FailedJobIDs, jobID)
	s.instance.UpdatedAt = now
}

func (s *workflowState) RecordRetriedJob(jobID string, now time.Time) {
	s.instance.JobsFailed--

	failed := s.instance.FailedJobIDs[:0]

	for _, id := range s.instance.FailedJobIDs {
		if id != jobID {
			failed = append(failed, id)
		}
	}

	s.instance.FailedJobIDs = failed
	s.instance.UpdatedAt = now
}

// MarkFinished sets the completion timestamp exactly once.
func (s *workflowState) MarkFinished(now time.Time) {
	if s.instance.FinishedAt != nil {
		return
	}

	s.instance.FinishedAt = &now
	s.instance.UpdatedAt = now
}

func (s *workflowState) MarkCancelled(now time.Time) bool {
	if s.instance.CancelledAt != nil {
		return false
	}

	s.instance.CancelledAt = &now
	s.instance.UpdatedAt = now

	return true
}

// Package graph builds and queries immutable directed acyclic graphs of workflow jobs.
package graph

import (
	"errors"
	"fmt"
)

// Definition-time errors. All of them are fatal: they abort graph
// construction before anything is persisted or dispatched.
var (
	// ErrUnresolvableDependency indicates a job referenced a dependency id
	// that does not exist in the graph yet. Dependencies must be added
	// before their dependents.
	ErrUnresolvableDependency = errors.New("unresolvable dependency")

	// ErrDuplicateJob indicates a job id (explicit or derived from the
	// payload type) already exists in the graph.
	ErrDuplicateJob = errors.New("duplicate job id")

	// ErrCycleDetected indicates the declared dependencies form a cycle.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrGraphSealed indicates a structural mutation was attempted after
	// the graph was sealed.
	ErrGraphSealed = errors.New("graph is sealed")

	// ErrNodeNotFound indicates a lookup for an id the graph does not contain.
	ErrNodeNotFound = errors.New("node not found in graph")
)

// DefinitionError wraps definition-time errors with the job and dependency
// ids involved.
type DefinitionError struct {
	Op         string // Operation being performed (e.g., "AddJob", "AddGraph", "Build")
	JobID      string // Job being added, if applicable
	Dependency string // Offending dependency id, if applicable
	Err        error  // Underlying sentinel
}

func (e *DefinitionError) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("%s failed for job %s: %v: %s", e.Op, e.JobID, e.Err, e.Dependency)
	}

	return fmt.Sprintf("%s failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsUnresolvableDependency checks if an error indicates a missing dependency reference.
func IsUnresolvableDependency(err error) bool {
	return errors.Is(err, ErrUnresolvableDependency)
}

// IsDuplicateJob checks if an error indicates a conflicting job id.
func IsDuplicateJob(err error) bool {
	return errors.Is(err, ErrDuplicateJob)
}

// IsCycleDetected checks if an error indicates a dependency cycle.
func IsCycleDetected(err error) bool {
	return errors.Is(err, ErrCycleDetected)
}

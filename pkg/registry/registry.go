// Package registry maps job type names to executable handlers. The engine
// treats job payloads as opaque; this is the boundary where a persisted type
// name and parameter map become runnable code on a worker.
package registry

import (
	"context"
	"fmt"
	"log/slog"
)

// JobInput is what a handler receives when its job is executed.
type JobInput struct {
	WorkflowID string
	JobID      string
	Params     map[string]any
}

// Job is an executable job handler instance.
type Job interface {
	Execute(ctx context.Context, input JobInput) error
}

// JobFactory builds a handler from the persisted parameter map.
type JobFactory func(params map[string]any) (Job, error)

type registration struct {
	factory JobFactory
	schema  *paramSchema
}

// Registry holds the job factories a worker can execute.
type Registry struct {
	logger    *slog.Logger
	factories map[string]registration
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]registration),
	}
}

// Register binds a job type name to a factory.
func (r *Registry) Register(jobType string, factory JobFactory) {
	r.factories[jobType] = registration{factory: factory}
}

// RegisterWithSchema binds a job type name to a factory and a JSON schema
// its parameters are validated against before instantiation.
func (r *Registry) RegisterWithSchema(jobType string, rawSchema []byte, factory JobFactory) error {
	schema, err := compileParamSchema(rawSchema)
	if err != nil {
		return fmt.Errorf("invalid schema for job type %q: %w", jobType, err)
	}

	r.factories[jobType] = registration{factory: factory, schema: schema}

	return nil
}

// Types returns the registered job type names.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for jobType := range r.factories {
		types = append(types, jobType)
	}

	return types
}

func (r *Registry) IsRegistered(jobType string) bool {
	_, ok := r.factories[jobType]

	return ok
}

// Create validates params against the type's schema, if any, and builds a
// handler instance.
func (r *Registry) Create(jobType string, params map[string]any) (Job, error) {
	reg, ok := r.factories[jobType]
	if !ok {
		return nil, fmt.Errorf("job type %q not registered", jobType)
	}

	if reg.schema != nil {
		if err := reg.schema.validate(params); err != nil {
			return nil, fmt.Errorf("invalid params for job type %q: %w", jobType, err)
		}
	}

	return reg.factory(params)
}

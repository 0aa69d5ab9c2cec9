package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/venturehq/venture/pkg/graph"
)

// Definition is the declarative, JSON-serializable form of a workflow
// graph. It is the format accepted by the API and by schedule entries;
// programmatic callers use graph.Builder directly.
type Definition struct {
	Name     string          `json:"name"     validate:"required,min=3"`
	Schedule string          `json:"schedule,omitempty"`
	Jobs     []JobDefinition `json:"jobs"     validate:"required,min=1,dive"`
}

type JobDefinition struct {
	ID           string         `json:"id"                      validate:"required"`
	Type         string         `json:"type"                    validate:"required"`
	Name         string         `json:"name,omitempty"`
	DependsOn    []string       `json:"depends_on,omitempty"`
	DependsOnAny []Alternatives `json:"depends_on_any,omitempty"`
	Queue        string         `json:"queue,omitempty"`
	Connection   string         `json:"connection,omitempty"`
	Gated        bool           `json:"gated,omitempty"`
	DelaySeconds int            `json:"delay_seconds,omitempty" validate:"min=0"`
	Params       map[string]any `json:"params,omitempty"`
}

// Alternatives is a conditional dependency: the primary id when it exists
// in the final graph, otherwise the first fallback that does.
type Alternatives struct {
	Primary  string   `json:"primary"  validate:"required"`
	Fallback []string `json:"fallback,omitempty"`
}

const definitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "jobs"],
	"properties": {
		"name": {"type": "string", "minLength": 3},
		"schedule": {"type": "string"},
		"jobs": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"name": {"type": "string"},
					"depends_on": {"type": "array", "items": {"type": "string"}},
					"depends_on_any": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["primary"],
							"properties": {
								"primary": {"type": "string", "minLength": 1},
								"fallback": {"type": "array", "items": {"type": "string"}}
							}
						}
					},
					"queue": {"type": "string"},
					"connection": {"type": "string"},
					"gated": {"type": "boolean"},
					"delay_seconds": {"type": "integer", "minimum": 0},
					"params": {"type": "object"}
				}
			}
		}
	}
}`

// ParseDefinition decodes and validates a JSON workflow definition. The
// document is checked against the definition schema before decoding, so
// structural errors surface with JSON-pointer detail instead of zero-value
// structs.
func ParseDefinition(data []byte) (*Definition, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(definitionSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate workflow definition: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return nil, fmt.Errorf("invalid workflow definition: %s", strings.Join(errors, "; "))
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	if err := validator.New().Struct(&def); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	return &def, nil
}

// BuildGraph compiles the definition into a sealed graph. Jobs are added in
// declaration order, so a job may only depend on jobs declared before it;
// conditional dependencies are resolved when the graph is built.
func (d *Definition) BuildGraph() (*graph.Graph, error) {
	builder := graph.NewBuilder(graph.WithTypeIdentity(func(payload any) string {
		return payload.(string)
	}))

	now := time.Now().UTC()

	for _, job := range d.Jobs {
		opts := []graph.JobOption{graph.WithID(job.ID)}

		if job.Name != "" {
			opts = append(opts, graph.WithName(job.Name))
		}

		if len(job.DependsOn) > 0 {
			opts = append(opts, graph.WithDependencies(job.DependsOn...))
		}

		for _, alt := range job.DependsOnAny {
			opts = append(opts, graph.WithDependency(graph.DependencyIf(alt.Primary, alt.Fallback...)))
		}

		if job.Queue != "" || job.Connection != "" {
			opts = append(opts, graph.WithQueue(job.Queue, job.Connection))
		}

		if job.Gated {
			opts = append(opts, graph.WithGate())
		}

		if job.DelaySeconds > 0 {
			opts = append(opts, graph.WithDelay(now.Add(time.Duration(job.DelaySeconds)*time.Second)))
		}

		if len(job.Params) > 0 {
			opts = append(opts, graph.WithParams(job.Params))
		}

		if _, err := builder.AddJob(job.Type, opts...); err != nil {
			return nil, err
		}
	}

	return builder.Build()
}

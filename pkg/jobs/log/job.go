// Package log provides a built-in job that writes a message to the worker
// log. Mostly useful for wiring checks and demo workflows.
package log

import (
	"context"
	"log/slog"

	"github.com/venturehq/venture/pkg/registry"
)

const Type = "log"

// Schema validates the job parameters before instantiation.
var Schema = []byte(`{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 1},
		"level": {"type": "string", "enum": ["debug", "info", "warn", "error"], "default": "info"}
	}
}`)

type Job struct {
	message string
	level   string
	logger  *slog.Logger
}

// Register adds the log job type to the registry.
func Register(reg *registry.Registry, logger *slog.Logger) error {
	return reg.RegisterWithSchema(Type, Schema, func(params map[string]any) (registry.Job, error) {
		message, _ := params["message"].(string)
		level, _ := params["level"].(string)

		if level == "" {
			level = "info"
		}

		return &Job{message: message, level: level, logger: logger.With("job_type", Type)}, nil
	})
}

func (j *Job) Execute(ctx context.Context, input registry.JobInput) error {
	logger := j.logger.With("workflow_id", input.WorkflowID, "job_id", input.JobID)

	switch j.level {
	case "debug":
		logger.DebugContext(ctx, j.message)
	case "warn":
		logger.WarnContext(ctx, j.message)
	case "error":
		logger.ErrorContext(ctx, j.message)
	default:
		logger.InfoContext(ctx, j.message)
	}

	return nil
}

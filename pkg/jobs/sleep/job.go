// Package sleep provides a built-in job that waits for a duration. Handy
// for demos and for testing delayed branches end to end.
package sleep

import (
	"context"
	"time"

	"github.com/venturehq/venture/pkg/registry"
)

const Type = "sleep"

var Schema = []byte(`{
	"type": "object",
	"required": ["seconds"],
	"properties": {
		"seconds": {"type": "number", "minimum": 0}
	}
}`)

type Job struct {
	duration time.Duration
}

func Register(reg *registry.Registry) error {
	return reg.RegisterWithSchema(Type, Schema, func(params map[string]any) (registry.Job, error) {
		seconds, _ := params["seconds"].(float64)

		return &Job{duration: time.Duration(seconds * float64(time.Second))}, nil
	})
}

func (j *Job) Execute(ctx context.Context, _ registry.JobInput) error {
	select {
	case <-time.After(j.duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturehq/venture/pkg/registry"
)

func TestRegisterAndExecute(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	reg := registry.NewRegistry(logger)
	require.NoError(t, Register(reg, logger))

	job, err := reg.Create(Type, map[string]any{"message": "order processed", "level": "warn"})
	require.NoError(t, err)

	require.NoError(t, job.Execute(context.Background(), registry.JobInput{
		WorkflowID: "wf-1",
		JobID:      "notify",
	}))

	output := buf.String()
	assert.Contains(t, output, "order processed")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "workflow_id=wf-1")
}

func TestRegisterRejectsMissingMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	reg := registry.NewRegistry(logger)
	require.NoError(t, Register(reg, logger))

	_, err := reg.Create(Type, map[string]any{"level": "info"})
	require.Error(t, err)
}

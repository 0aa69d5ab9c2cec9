package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/workflow"
)

type fakeStarter struct {
	started []string
}

func (s *fakeStarter) StartDefinition(_ context.Context, def *workflow.Definition) (*models.WorkflowInstance, error) {
	s.started = append(s.started, def.Name)

	return &models.WorkflowInstance{ID: "wf-1", Name: def.Name}, nil
}

func testRunner() (*Runner, *fakeStarter) {
	starter := &fakeStarter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRunner(starter, logger), starter
}

func TestRegisterScheduledDefinition(t *testing.T) {
	runner, _ := testRunner()

	def := &workflow.Definition{
		Name:     "nightly",
		Schedule: "0 2 * * *",
		Jobs:     []workflow.JobDefinition{{ID: "a", Type: "log"}},
	}

	require.NoError(t, runner.Register(def))
}

func TestRegisterRejectsMissingSchedule(t *testing.T) {
	runner, _ := testRunner()

	def := &workflow.Definition{
		Name: "on demand",
		Jobs: []workflow.JobDefinition{{ID: "a", Type: "log"}},
	}

	err := runner.Register(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schedule")
}

func TestRegisterRejectsInvalidCron(t *testing.T) {
	runner, _ := testRunner()

	def := &workflow.Definition{
		Name:     "broken",
		Schedule: "not a cron",
		Jobs:     []workflow.JobDefinition{{ID: "a", Type: "log"}},
	}

	err := runner.Register(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestStopWithoutStart(t *testing.T) {
	runner, _ := testRunner()

	require.NoError(t, runner.Stop(context.Background()))
}

package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/venturehq/venture/pkg/channels/gochannel"
	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/registry"
)

type consumerReporter struct {
	mock.Mock
}

func (m *consumerReporter) OnJobFinished(ctx context.Context, workflowID, jobID string) error {
	args := m.Called(ctx, workflowID, jobID)

	return args.Error(0)
}

func (m *consumerReporter) OnJobFailed(ctx context.Context, workflowID, jobID string, jobErr error) error {
	args := m.Called(ctx, workflowID, jobID, jobErr)

	return args.Error(0)
}

type recordedExecution struct {
	input registry.JobInput
}

func consumerFixture(t *testing.T, executeErr error) (*WatermillDispatcher, *consumerReporter, *recordedExecution, chan struct{}) {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	executed := make(chan struct{}, 1)
	record := &recordedExecution{}

	reg := registry.NewRegistry(testLogger())
	reg.Register("record", func(_ map[string]any) (registry.Job, error) {
		return jobFunc(func(_ context.Context, input registry.JobInput) error {
			record.input = input
			executed <- struct{}{}

			return executeErr
		}), nil
	})
	reg.Register("panics", func(_ map[string]any) (registry.Job, error) {
		return jobFunc(func(_ context.Context, _ registry.JobInput) error {
			panic("handler exploded")
		}), nil
	})

	reporter := &consumerReporter{}
	consumer := NewConsumer(sub, reg, reporter, testLogger())
	require.NoError(t, consumer.Start(context.Background(), "default"))

	return NewWatermillDispatcher(pub, testLogger()), reporter, record, executed
}

type jobFunc func(ctx context.Context, input registry.JobInput) error

func (f jobFunc) Execute(ctx context.Context, input registry.JobInput) error {
	return f(ctx, input)
}

func waitForCall(t *testing.T, m *mock.Mock, method string) {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		for _, call := range m.Calls {
			if call.Method == method {
				return
			}
		}

		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", method)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestConsumerReportsSuccess(t *testing.T) {
	dispatcher, reporter, record, executed := consumerFixture(t, nil)

	reporter.On("OnJobFinished", mock.Anything, "wf-1", "a").Return(nil)

	job := &DispatchedJob{
		WorkflowID: "wf-1",
		JobID:      "a",
		Type:       "record",
		Params:     map[string]any{"key": "value"},
		Queue:      models.QueueRef{},
	}
	require.NoError(t, dispatcher.Dispatch(context.Background(), job))

	<-executed
	waitForCall(t, &reporter.Mock, "OnJobFinished")

	assert.Equal(t, "wf-1", record.input.WorkflowID)
	assert.Equal(t, "a", record.input.JobID)
	assert.Equal(t, map[string]any{"key": "value"}, record.input.Params)
	reporter.AssertNotCalled(t, "OnJobFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumerReportsFailure(t *testing.T) {
	dispatcher, reporter, _, executed := consumerFixture(t, errors.New("boom"))

	reporter.On("OnJobFailed", mock.Anything, "wf-1", "a", mock.Anything).Return(nil)

	job := &DispatchedJob{WorkflowID: "wf-1", JobID: "a", Type: "record"}
	require.NoError(t, dispatcher.Dispatch(context.Background(), job))

	<-executed
	waitForCall(t, &reporter.Mock, "OnJobFailed")
	reporter.AssertNotCalled(t, "OnJobFinished", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumerRecoversFromPanic(t *testing.T) {
	dispatcher, reporter, _, _ := consumerFixture(t, nil)

	reporter.On("OnJobFailed", mock.Anything, "wf-1", "b", mock.Anything).Return(nil)

	job := &DispatchedJob{WorkflowID: "wf-1", JobID: "b", Type: "panics"}
	require.NoError(t, dispatcher.Dispatch(context.Background(), job))

	waitForCall(t, &reporter.Mock, "OnJobFailed")

	failure := reporter.Calls[0].Arguments.Get(3).(error)
	assert.Contains(t, failure.Error(), "panicked")
}

func TestConsumerReportsUnknownJobTypeAsFailure(t *testing.T) {
	dispatcher, reporter, _, _ := consumerFixture(t, nil)

	reporter.On("OnJobFailed", mock.Anything, "wf-1", "c", mock.Anything).Return(nil)

	job := &DispatchedJob{WorkflowID: "wf-1", JobID: "c", Type: "ghost"}
	require.NoError(t, dispatcher.Dispatch(context.Background(), job))

	waitForCall(t, &reporter.Mock, "OnJobFailed")
}

package queue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturehq/venture/pkg/channels/gochannel"
	"github.com/venturehq/venture/pkg/events"
	"github.com/venturehq/venture/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// receiveMessage pops the next published message or fails the test, so a
// dispatcher regression surfaces as a failure instead of a hung suite.
func receiveMessage(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()

	select {
	case msg := <-messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message was published")

		return nil
	}
}

type fakeDelayStore struct {
	parked []*DispatchedJob
}

func (s *fakeDelayStore) Park(_ context.Context, job *DispatchedJob, _ time.Time) error {
	s.parked = append(s.parked, job)

	return nil
}

func TestDispatchPublishesToQueueTopic(t *testing.T) {
	ctx := context.Background()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	messages, err := sub.Subscribe(ctx, events.JobsTopic("etl"))
	require.NoError(t, err)

	dispatcher := NewWatermillDispatcher(pub, testLogger())

	job := &DispatchedJob{
		WorkflowID: "wf-1",
		JobID:      "extract",
		Type:       "http_request",
		Queue:      models.QueueRef{Queue: "etl"},
	}
	require.NoError(t, dispatcher.Dispatch(ctx, job))

	msg := receiveMessage(t, messages)
	msg.Ack()

	var received DispatchedJob

	require.NoError(t, json.Unmarshal(msg.Payload, &received))
	assert.Equal(t, "wf-1", received.WorkflowID)
	assert.Equal(t, "extract", received.JobID)
	assert.Equal(t, "wf-1", msg.Metadata.Get(events.EventMetadataKey))
}

func TestDispatchEmptyQueueUsesDefaultTopic(t *testing.T) {
	ctx := context.Background()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	messages, err := sub.Subscribe(ctx, events.JobsTopic(""))
	require.NoError(t, err)

	dispatcher := NewWatermillDispatcher(pub, testLogger())

	require.NoError(t, dispatcher.Dispatch(ctx, &DispatchedJob{WorkflowID: "wf-1", JobID: "a"}))

	msg := receiveMessage(t, messages)
	msg.Ack()
	assert.NotEmpty(t, msg.Payload)
}

func TestDispatchParksFutureDelayedJob(t *testing.T) {
	ctx := context.Background()

	pub, _, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	store := &fakeDelayStore{}
	dispatcher := NewWatermillDispatcher(pub, testLogger(), WithDelayStore(store))

	due := time.Now().Add(time.Hour)

	job := &DispatchedJob{WorkflowID: "wf-1", JobID: "later", Delay: &due}
	require.NoError(t, dispatcher.Dispatch(ctx, job))

	require.Len(t, store.parked, 1)
	assert.Equal(t, "later", store.parked[0].JobID)
}

func TestDispatchPublishesPastDelayImmediately(t *testing.T) {
	ctx := context.Background()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	messages, err := sub.Subscribe(ctx, events.JobsTopic(""))
	require.NoError(t, err)

	store := &fakeDelayStore{}
	dispatcher := NewWatermillDispatcher(pub, testLogger(), WithDelayStore(store))

	past := time.Now().Add(-time.Minute)

	require.NoError(t, dispatcher.Dispatch(ctx, &DispatchedJob{WorkflowID: "wf-1", JobID: "a", Delay: &past}))

	assert.Empty(t, store.parked)

	msg := receiveMessage(t, messages)
	msg.Ack()
	assert.NotEmpty(t, msg.Metadata.Get("delay_until"))
}

package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/venturehq/venture/pkg/channels/gochannel"
	"github.com/venturehq/venture/pkg/eventbus"
	"github.com/venturehq/venture/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvent(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.WorkflowStarted, 1)

	err := bus.Handle(events.WorkflowStartedEvent, func(_ context.Context, event interface{}) error {
		started, ok := event.(*events.WorkflowStarted)
		if !ok {
			t.Errorf("unexpected event type %T", event)

			return nil
		}

		received <- started

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	started := &events.WorkflowStarted{
		BaseEvent:     events.NewBaseEvent(events.WorkflowStartedEvent, "wf-1"),
		Name:          "nightly-report",
		InitialJobIDs: []string{"extract"},
		JobCount:      3,
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	select {
	case got := <-received:
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "nightly-report", got.Name)
		assert.Equal(t, []string{"extract"}, got.InitialJobIDs)
		assert.Equal(t, 3, got.JobCount)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnsubscribedTypes(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan struct{}, 1)

	err := bus.Handle(events.WorkflowFinishedEvent, func(context.Context, interface{}) error {
		received <- struct{}{}

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	started := &events.WorkflowStarted{
		BaseEvent: events.NewBaseEvent(events.WorkflowStartedEvent, "wf-1"),
		Name:      "nightly-report",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	select {
	case <-received:
		t.Fatal("handler fired for an event type it never subscribed to")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	a := bus.GenerateID()
	b := bus.GenerateID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

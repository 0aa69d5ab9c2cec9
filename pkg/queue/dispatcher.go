package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/venturehq/venture/pkg/events"
)

// WatermillDispatcher publishes jobs to per-queue topics. Jobs with a
// future delay are parked in the delay store instead, when one is
// configured; without a delay store the delay is carried as message
// metadata for the substrate to honor.
type WatermillDispatcher struct {
	publisher message.Publisher
	delay     DelayStore
	logger    *slog.Logger
}

type DispatcherOption func(*WatermillDispatcher)

// WithDelayStore parks future-delayed jobs instead of publishing them immediately.
func WithDelayStore(store DelayStore) DispatcherOption {
	return func(d *WatermillDispatcher) {
		d.delay = store
	}
}

func NewWatermillDispatcher(publisher message.Publisher, logger *slog.Logger, opts ...DispatcherOption) *WatermillDispatcher {
	d := &WatermillDispatcher{
		publisher: publisher,
		logger:    logger.With("module", "queue_dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *WatermillDispatcher) Dispatch(ctx context.Context, job *DispatchedJob) error {
	if job.Delay != nil && d.delay != nil {
		if due := *job.Delay; time.Now().Before(due) {
			d.logger.InfoContext(ctx, "Parking delayed job",
				"workflow_id", job.WorkflowID, "job_id", job.JobID, "due", due)

			return d.delay.Park(ctx, job, due)
		}
	}

	return d.Publish(ctx, job)
}

// Publish hands the job to its queue topic immediately, bypassing the delay
// store. The delay poller uses it for jobs that have come due.
func (d *WatermillDispatcher) Publish(ctx context.Context, job *DispatchedJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.JobID, err)
	}

	msg := message.NewMessage("job-"+watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, job.WorkflowID)

	if job.Delay != nil {
		msg.Metadata.Set("delay_until", job.Delay.UTC().Format(time.RFC3339))
	}

	topic := events.JobsTopic(job.Queue.Queue)

	d.logger.InfoContext(ctx, "Dispatching job",
		"workflow_id", job.WorkflowID, "job_id", job.JobID, "topic", topic)

	return d.publisher.Publish(topic, msg)
}

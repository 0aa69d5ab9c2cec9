package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/venturehq/venture/pkg/events"
	"github.com/venturehq/venture/pkg/registry"
	"github.com/venturehq/venture/pkg/template"
)

// Consumer subscribes to job topics, executes registered handlers and
// reports the outcome. Handler errors and panics are translated into
// OnJobFailed calls; they never escape the consume loop.
type Consumer struct {
	subscriber message.Subscriber
	registry   *registry.Registry
	reporter   Reporter
	logger     *slog.Logger
}

func NewConsumer(subscriber message.Subscriber, reg *registry.Registry, reporter Reporter, logger *slog.Logger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		registry:   reg,
		reporter:   reporter,
		logger:     logger.With("module", "queue_consumer"),
	}
}

// Start consumes the given queues until ctx is cancelled. An empty list
// consumes the default queue.
func (c *Consumer) Start(ctx context.Context, queues ...string) error {
	if len(queues) == 0 {
		queues = []string{"default"}
	}

	for _, queueName := range queues {
		topic := events.JobsTopic(queueName)

		messages, err := c.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}

		c.logger.InfoContext(ctx, "Consuming queue", "topic", topic)

		go c.consume(ctx, messages)
	}

	return nil
}

func (c *Consumer) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		var job DispatchedJob

		if err := json.Unmarshal(msg.Payload, &job); err != nil {
			c.logger.ErrorContext(ctx, "Failed to decode job message", "error", err)
			msg.Nack()

			continue
		}

		if err := c.handle(ctx, &job); err != nil {
			// Reporting failed; leave the message unacked so the
			// completion is not lost.
			c.logger.ErrorContext(ctx, "Failed to report job outcome",
				"workflow_id", job.WorkflowID, "job_id", job.JobID, "error", err)
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func (c *Consumer) handle(ctx context.Context, job *DispatchedJob) error {
	logger := c.logger.With("workflow_id", job.WorkflowID, "job_id", job.JobID, "job_type", job.Type)
	logger.InfoContext(ctx, "Executing job")

	err := c.execute(ctx, job)
	if err != nil {
		logger.WarnContext(ctx, "Job failed", "error", err)

		return c.reporter.OnJobFailed(ctx, job.WorkflowID, job.JobID, err)
	}

	logger.InfoContext(ctx, "Job finished")

	return c.reporter.OnJobFinished(ctx, job.WorkflowID, job.JobID)
}

func (c *Consumer) execute(ctx context.Context, job *DispatchedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	params, err := template.RenderParams(job.Params, job.WorkflowID, job.JobID)
	if err != nil {
		return fmt.Errorf("failed to render job params: %w", err)
	}

	handler, err := c.registry.Create(job.Type, params)
	if err != nil {
		return err
	}

	return handler.Execute(ctx, registry.JobInput{
		WorkflowID: job.WorkflowID,
		JobID:      job.JobID,
		Params:     params,
	})
}

// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/venturehq/venture/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "venture.events"          // Topic for workflow lifecycle events
const JobsTopicPrefix = "venture.jobs." // Per-queue topics for job dispatch

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

// JobsTopic returns the dispatch topic for a queue. An empty queue name
// routes to the default queue.
func JobsTopic(queue string) string {
	if queue == "" {
		queue = "default"
	}

	return JobsTopicPrefix + queue
}

const (
	// Definition-time events. The *-ing variants fire before the mutation is
	// committed and carry mutable payloads; a subscriber error aborts the
	// operation.
	JobAddingEvent      EventType = "job.adding"
	JobAddedEvent       EventType = "job.added"
	WorkflowAddingEvent EventType = "workflow.adding"
	WorkflowAddedEvent  EventType = "workflow.added"

	// Persistence-boundary events.
	JobCreatingEvent      EventType = "job.creating"
	JobCreatedEvent       EventType = "job.created"
	WorkflowCreatingEvent EventType = "workflow.creating"
	WorkflowCreatedEvent  EventType = "workflow.created"

	// Run-time events.
	JobProcessingEvent     EventType = "job.processing"
	JobFinishedEvent       EventType = "job.finished"
	JobFailedEvent         EventType = "job.failed"
	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowFinishedEvent  EventType = "workflow.finished"
	WorkflowCancelledEvent EventType = "workflow.cancelled"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

// JobAdding fires before a job is inserted into a graph under definition.
// ID, Name and Delay may be altered by subscribers before insertion.
type JobAdding struct {
	BaseEvent

	JobID        string     `json:"job_id"`
	Name         string     `json:"name"`
	Delay        *time.Time `json:"delay,omitempty"`
	Dependencies []string   `json:"dependencies"`
}

func (e *JobAdding) GetType() EventType {
	return JobAddingEvent
}

type JobAdded struct {
	BaseEvent

	JobID        string   `json:"job_id"`
	Dependencies []string `json:"dependencies"`
}

func (e *JobAdded) GetType() EventType {
	return JobAddedEvent
}

// JobCreating fires before a job record is persisted. The Job pointer is
// shared with the scheduler, so subscribers may adjust persisted fields.
type JobCreating struct {
	BaseEvent

	Job *models.JobNode `json:"job"`
}

func (e *JobCreating) GetType() EventType {
	return JobCreatingEvent
}

type JobCreated struct {
	BaseEvent

	Job *models.JobNode `json:"job"`
}

func (e *JobCreated) GetType() EventType {
	return JobCreatedEvent
}

type JobProcessing struct {
	BaseEvent

	JobID string          `json:"job_id"`
	Queue models.QueueRef `json:"queue"`
}

func (e *JobProcessing) GetType() EventType {
	return JobProcessingEvent
}

type JobFinished struct {
	BaseEvent

	JobID         string `json:"job_id"`
	JobsProcessed int    `json:"jobs_processed"`
}

func (e *JobFinished) GetType() EventType {
	return JobFinishedEvent
}

type JobFailed struct {
	BaseEvent

	JobID string `json:"job_id"`
	Error string `json:"error"`
}

func (e *JobFailed) GetType() EventType {
	return JobFailedEvent
}

// WorkflowAdding fires before a workflow definition is accepted. Name may be
// altered by subscribers.
type WorkflowAdding struct {
	BaseEvent

	Name string `json:"name"`
}

func (e *WorkflowAdding) GetType() EventType {
	return WorkflowAddingEvent
}

type WorkflowAdded struct {
	BaseEvent

	Name     string `json:"name"`
	JobCount int    `json:"job_count"`
}

func (e *WorkflowAdded) GetType() EventType {
	return WorkflowAddedEvent
}

type WorkflowCreating struct {
	BaseEvent

	Workflow *models.WorkflowInstance `json:"workflow"`
}

func (e *WorkflowCreating) GetType() EventType {
	return WorkflowCreatingEvent
}

type WorkflowCreated struct {
	BaseEvent

	Workflow *models.WorkflowInstance `json:"workflow"`
}

func (e *WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

// WorkflowStarted carries the initial dispatch set: every root job that was
// handed to the queue when the run began.
type WorkflowStarted struct {
	BaseEvent

	Name          string   `json:"name"`
	InitialJobIDs []string `json:"initial_job_ids"`
	JobCount      int      `json:"job_count"`
}

func (e *WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowFinished struct {
	BaseEvent

	Name          string        `json:"name"`
	JobsProcessed int           `json:"jobs_processed"`
	Duration      time.Duration `json:"duration"`
}

func (e *WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

type WorkflowCancelled struct {
	BaseEvent

	CancelledAt time.Time `json:"cancelled_at"`
}

func (e *WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

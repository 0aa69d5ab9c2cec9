package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/venturehq/venture/pkg/eventbus"
	"github.com/venturehq/venture/pkg/events"
	"github.com/venturehq/venture/pkg/graph"
	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/otelhelper"
	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/queue"
)

// Callbacks are the user-facing completion hooks of a run. Then fires
// exactly once, after every job finished successfully. Catch fires once per
// distinct job failure, so it can run many times in one workflow.
type Callbacks struct {
	Then  func(ctx context.Context, workflow *models.WorkflowInstance)
	Catch func(ctx context.Context, workflow *models.WorkflowInstance, job *models.JobNode, jobErr error)
}

// run is the in-memory state of one workflow instance. Bookkeeping within a
// process is serialized through the mutex; across processes the workflow
// row's version compare-and-swap serializes completions, so two jobs
// finishing on different workers cannot race the frontier computation and
// double-dispatch a shared dependent.
type run struct {
	mu        sync.Mutex
	instance  *models.WorkflowInstance
	graph     *graph.Graph
	callbacks Callbacks
	thenFired bool
}

// Scheduler computes the runnable frontier of workflow graphs and hands
// dispatchable jobs to the queue. It implements queue.Reporter: workers
// feed completions back through OnJobFinished/OnJobFailed.
type Scheduler struct {
	persistence persistence.Persistence
	dispatcher  queue.Dispatcher
	hooks       *eventbus.Hooks
	bus         eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer

	mu   sync.Mutex
	runs map[string]*run
}

type SchedulerOption func(*Scheduler)

// WithHooks attaches the synchronous lifecycle hook bus.
func WithHooks(hooks *eventbus.Hooks) SchedulerOption {
	return func(s *Scheduler) {
		s.hooks = hooks
	}
}

// WithEventBus publishes post-commit lifecycle events to an external bus.
func WithEventBus(bus eventbus.EventPublisher) SchedulerOption {
	return func(s *Scheduler) {
		s.bus = bus
	}
}

// WithTracer records dispatch and completion spans.
func WithTracer(tracer trace.Tracer) SchedulerOption {
	return func(s *Scheduler) {
		s.tracer = tracer
	}
}

func NewScheduler(store persistence.Persistence, dispatcher queue.Dispatcher, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		persistence: store,
		dispatcher:  dispatcher,
		validate:    validator.New(),
		logger:      logger.With("module", "scheduler"),
		runs:        make(map[string]*run),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start creates a workflow instance for the sealed graph, persists it with
// all of its jobs and dispatches the initial frontier: every root node, in
// insertion order. Gated roots are held instead of dispatched.
func (s *Scheduler) Start(ctx context.Context, name string, g *graph.Graph, callbacks Callbacks) (*models.WorkflowInstance, error) {
	now := time.Now().UTC()

	adding := &events.WorkflowAdding{
		BaseEvent: events.NewBaseEvent(events.WorkflowAddingEvent, ""),
		Name:      name,
	}
	if err := s.emitHook(ctx, adding); err != nil {
		return nil, fmt.Errorf("workflow %q rejected: %w", name, err)
	}

	instance := &models.WorkflowInstance{
		ID:             uuid.New().String(),
		Name:           adding.Name,
		JobCount:       g.Len(),
		FinishedJobIDs: []string{},
		StartedAt:      &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.validate.Struct(instance); err != nil {
		return nil, fmt.Errorf("invalid workflow %q: %w", instance.Name, err)
	}

	if err := s.emitHook(ctx, &events.WorkflowAdded{
		BaseEvent: events.NewBaseEvent(events.WorkflowAddedEvent, instance.ID),
		Name:      instance.Name,
		JobCount:  instance.JobCount,
	}); err != nil {
		return nil, err
	}

	if err := s.emitHook(ctx, &events.WorkflowCreating{
		BaseEvent: events.NewBaseEvent(events.WorkflowCreatingEvent, instance.ID),
		Workflow:  instance,
	}); err != nil {
		return nil, fmt.Errorf("workflow %q rejected before persistence: %w", instance.Name, err)
	}

	if err := s.persistence.SaveWorkflow(ctx, instance); err != nil {
		return nil, err
	}

	if err := s.emitHook(ctx, &events.WorkflowCreated{
		BaseEvent: events.NewBaseEvent(events.WorkflowCreatedEvent, instance.ID),
		Workflow:  instance,
	}); err != nil {
		return nil, err
	}

	for _, job := range g.Jobs() {
		if err := s.emitHook(ctx, &events.JobCreating{
			BaseEvent: events.NewBaseEvent(events.JobCreatingEvent, instance.ID),
			Job:       job,
		}); err != nil {
			return nil, fmt.Errorf("job %q rejected before persistence: %w", job.ID, err)
		}

		if err := s.persistence.SaveJob(ctx, instance.ID, job); err != nil {
			return nil, err
		}

		if err := s.emitHook(ctx, &events.JobCreated{
			BaseEvent: events.NewBaseEvent(events.JobCreatedEvent, instance.ID),
			Job:       job,
		}); err != nil {
			return nil, err
		}
	}

	r := &run{instance: instance, graph: g, callbacks: callbacks}

	s.mu.Lock()
	s.runs[instance.ID] = r
	s.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	var initial []string

	for _, job := range g.Roots() {
		if job.Gated {
			if err := s.holdAtGate(ctx, r, job, now); err != nil {
				return nil, err
			}

			continue
		}

		if err := s.dispatchJob(ctx, r, job); err != nil {
			return nil, err
		}

		initial = append(initial, job.ID)
	}

	started := &events.WorkflowStarted{
		BaseEvent:     events.NewBaseEvent(events.WorkflowStartedEvent, instance.ID),
		Name:          instance.Name,
		InitialJobIDs: initial,
		JobCount:      instance.JobCount,
	}
	if err := s.emitHook(ctx, started); err != nil {
		return nil, err
	}

	s.publish(ctx, instance.ID, started)

	s.logger.InfoContext(ctx, "Workflow started",
		"workflow_id", instance.ID, "name", instance.Name,
		"job_count", instance.JobCount, "initial_jobs", initial)

	return instance, nil
}

// StartDefinition compiles a declarative definition and starts it. Runs
// started this way have no completion callbacks; consumers observe them
// through the event bus instead.
func (s *Scheduler) StartDefinition(ctx context.Context, def *Definition) (*models.WorkflowInstance, error) {
	g, err := def.BuildGraph()
	if err != nil {
		return nil, err
	}

	return s.Start(ctx, def.Name, g, Callbacks{})
}

// maxConflictRetries bounds how often a completion is replayed after losing
// the workflow-row compare-and-swap to another process.
const maxConflictRetries = 3

// withConflictRetry runs apply under the run lock, reloading the run from
// persistence and replaying whenever the workflow save lost its
// compare-and-swap. This is what serializes completions across worker
// processes: each process applies its update on top of the state the other
// one committed.
func (s *Scheduler) withConflictRetry(ctx context.Context, r *run, apply func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; ; attempt++ {
		err := apply()
		if !persistence.IsVersionConflict(err) || attempt == maxConflictRetries {
			return err
		}

		if err := s.refresh(ctx, r); err != nil {
			return err
		}
	}
}

// refresh reloads the run's instance and job state from persistence,
// keeping callbacks. Called under the run lock after a lost swap.
func (s *Scheduler) refresh(ctx context.Context, r *run) error {
	instance, err := s.persistence.WorkflowByID(ctx, r.instance.ID)
	if err != nil {
		return err
	}

	jobs, err := s.persistence.JobsByWorkflowID(ctx, r.instance.ID)
	if err != nil {
		return err
	}

	r.instance = instance
	r.graph = graph.FromJobs(jobs)

	return nil
}

// OnJobFinished records a successful completion, dispatches every job whose
// dependencies are now satisfied and finishes the workflow when all jobs
// processed. Redundant deliveries still re-evaluate the frontier, so a
// completion whose first delivery aborted mid-way cannot strand dependents.
func (s *Scheduler) OnJobFinished(ctx context.Context, workflowID, jobID string) error {
	r, err := s.runOf(ctx, workflowID)
	if err != nil {
		return err
	}

	return s.withConflictRetry(ctx, r, func() error {
		return s.applyJobFinished(ctx, r, jobID)
	})
}

func (s *Scheduler) applyJobFinished(ctx context.Context, r *run, jobID string) error {
	job := r.graph.Node(jobID)
	if job == nil {
		return &graph.DefinitionError{Op: "OnJobFinished", JobID: jobID, Err: graph.ErrNodeNotFound}
	}

	now := time.Now().UTC()
	ws := NewWorkflowState(r.instance)

	// The instance's finished set is the commit marker: once the job id is
	// in it, the completion was fully recorded and only the frontier needs
	// re-evaluation.
	var hookErr error

	if !r.instance.HasFinishedJob(jobID) {
		state := NewJobState(job)

		if !state.HasFinished() {
			state.MarkFinished(now)

			if err := s.persistence.SaveJob(ctx, r.instance.ID, job); err != nil {
				return err
			}
		}

		ws.RecordFinishedJob(jobID, now)

		if err := s.persistence.SaveWorkflow(ctx, r.instance); err != nil {
			return err
		}

		finished := &events.JobFinished{
			BaseEvent:     events.NewBaseEvent(events.JobFinishedEvent, r.instance.ID),
			JobID:         jobID,
			JobsProcessed: r.instance.JobsProcessed,
		}

		// A failing subscriber must not strand dependents: the frontier
		// still advances, the error is reported afterwards.
		if hookErr = s.emitHook(ctx, finished); hookErr != nil {
			s.logger.WarnContext(ctx, "Completion subscriber failed",
				"workflow_id", r.instance.ID, "job_id", jobID, "error", hookErr)
		}

		s.publish(ctx, r.instance.ID, finished)
	}

	if ws.IsCancelled() {
		s.logger.InfoContext(ctx, "Workflow cancelled, suppressing dispatch",
			"workflow_id", r.instance.ID, "job_id", jobID)

		return hookErr
	}

	if err := s.advance(ctx, r, now); err != nil {
		return err
	}

	if ws.AllJobsFinished() {
		if err := s.finish(ctx, r, now); err != nil {
			return err
		}
	}

	return hookErr
}

// OnJobFailed records a failure and invokes the catch callback. Descendants
// of the failed job are permanently excluded from dispatch for this run:
// their dependencies can never all finish. Unrelated branches are
// unaffected.
func (s *Scheduler) OnJobFailed(ctx context.Context, workflowID, jobID string, jobErr error) error {
	r, err := s.runOf(ctx, workflowID)
	if err != nil {
		return err
	}

	return s.withConflictRetry(ctx, r, func() error {
		return s.applyJobFailed(ctx, r, jobID, jobErr)
	})
}

func (s *Scheduler) applyJobFailed(ctx context.Context, r *run, jobID string, jobErr error) error {
	job := r.graph.Node(jobID)
	if job == nil {
		return &graph.DefinitionError{Op: "OnJobFailed", JobID: jobID, Err: graph.ErrNodeNotFound}
	}

	if r.instance.HasFailedJob(jobID) {
		return nil
	}

	now := time.Now().UTC()
	ws := NewWorkflowState(r.instance)
	state := NewJobState(job)

	if !state.HasFailed() {
		state.MarkFailed(now, jobErr)

		if err := s.persistence.SaveJob(ctx, r.instance.ID, job); err != nil {
			return err
		}
	}

	ws.RecordFailedJob(jobID, now)

	if err := s.persistence.SaveWorkflow(ctx, r.instance); err != nil {
		return err
	}

	failed := &events.JobFailed{
		BaseEvent: events.NewBaseEvent(events.JobFailedEvent, r.instance.ID),
		JobID:     jobID,
		Error:     job.Error,
	}
	if err := s.emitHook(ctx, failed); err != nil {
		return err
	}

	s.publish(ctx, r.instance.ID, failed)

	s.logger.WarnContext(ctx, "Job failed",
		"workflow_id", r.instance.ID, "job_id", jobID, "error", job.Error)

	if r.callbacks.Catch != nil {
		r.callbacks.Catch(ctx, r.instance, job, jobErr)
	}

	return nil
}

// Cancel sets the cancellation timestamp if unset. Cancellation is soft: it
// suppresses all future dispatch but never preempts in-flight jobs, whose
// completions are still recorded.
func (s *Scheduler) Cancel(ctx context.Context, workflowID string) error {
	r, err := s.runOf(ctx, workflowID)
	if err != nil {
		return err
	}

	return s.withConflictRetry(ctx, r, func() error {
		return s.applyCancel(ctx, r)
	})
}

func (s *Scheduler) applyCancel(ctx context.Context, r *run) error {
	now := time.Now().UTC()

	if !NewWorkflowState(r.instance).MarkCancelled(now) {
		return nil
	}

	if err := s.persistence.SaveWorkflow(ctx, r.instance); err != nil {
		return err
	}

	cancelled := &events.WorkflowCancelled{
		BaseEvent:   events.NewBaseEvent(events.WorkflowCancelledEvent, r.instance.ID),
		CancelledAt: now,
	}
	if err := s.emitHook(ctx, cancelled); err != nil {
		return err
	}

	s.publish(ctx, r.instance.ID, cancelled)

	s.logger.InfoContext(ctx, "Workflow cancelled", "workflow_id", r.instance.ID)

	return nil
}

// StartGatedJob releases a job held at its gate. Valid only for jobs in the
// gated state on a non-cancelled workflow.
func (s *Scheduler) StartGatedJob(ctx context.Context, workflowID, jobID string) error {
	r, err := s.runOf(ctx, workflowID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.graph.Node(jobID)
	if job == nil {
		return &graph.DefinitionError{Op: "StartGatedJob", JobID: jobID, Err: graph.ErrNodeNotFound}
	}

	if !NewJobState(job).IsGated() {
		return &StateError{
			WorkflowID: r.instance.ID,
			JobID:      jobID,
			Status:     string(job.Status),
			Err:        ErrJobNotGated,
		}
	}

	if NewWorkflowState(r.instance).IsCancelled() {
		return ErrWorkflowCancelled
	}

	return s.dispatchJob(ctx, r, job)
}

// RetryJob resubmits a failed job as a fresh dispatch. The job re-enters
// the run as pending and is dispatched immediately when its dependencies
// are still satisfied.
func (s *Scheduler) RetryJob(ctx context.Context, workflowID, jobID string) error {
	r, err := s.runOf(ctx, workflowID)
	if err != nil {
		return err
	}

	return s.withConflictRetry(ctx, r, func() error {
		return s.applyRetryJob(ctx, r, jobID)
	})
}

func (s *Scheduler) applyRetryJob(ctx context.Context, r *run, jobID string) error {
	job := r.graph.Node(jobID)
	if job == nil {
		return &graph.DefinitionError{Op: "RetryJob", JobID: jobID, Err: graph.ErrNodeNotFound}
	}

	if !NewJobState(job).HasFailed() {
		return &StateError{
			WorkflowID: r.instance.ID,
			JobID:      jobID,
			Status:     string(job.Status),
			Err:        ErrJobNotFailed,
		}
	}

	if NewWorkflowState(r.instance).IsCancelled() {
		return ErrWorkflowCancelled
	}

	now := time.Now().UTC()

	job.Status = models.JobStatusPending
	job.FailedAt = nil
	job.Error = ""
	NewWorkflowState(r.instance).RecordRetriedJob(jobID, now)

	if err := s.persistence.SaveJob(ctx, r.instance.ID, job); err != nil {
		return err
	}

	if err := s.persistence.SaveWorkflow(ctx, r.instance); err != nil {
		return err
	}

	return s.advance(ctx, r, now)
}

// Workflow returns the tracked instance for inspection.
func (s *Scheduler) Workflow(ctx context.Context, workflowID string) (*models.WorkflowInstance, error) {
	r, err := s.runOf(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.instance, nil
}

// advance dispatches every pending job whose dependencies are now all
// finished, and moves dependency-ready gated jobs to the gated state.
// Evaluation follows insertion order, the dispatch tie-break.
func (s *Scheduler) advance(ctx context.Context, r *run, now time.Time) error {
	finished := r.instance.FinishedSet()

	for _, job := range r.graph.Jobs() {
		dispatchable, err := NewJobState(job).Transition(finished, now)
		if err != nil {
			return err
		}

		if job.IsGated() && job.GatedAt != nil && job.GatedAt.Equal(now) {
			if err := s.persistence.SaveJob(ctx, r.instance.ID, job); err != nil {
				return err
			}

			continue
		}

		if !dispatchable {
			continue
		}

		if err := s.dispatchJob(ctx, r, job); err != nil {
			return err
		}
	}

	return nil
}

// dispatchJob transitions the job to processing and hands it to the queue.
// The status write is what makes dispatch at-most-once: a job is only ever
// dispatched from the pending or gated state, under the run lock.
func (s *Scheduler) dispatchJob(ctx context.Context, r *run, job *models.JobNode) error {
	now := time.Now().UTC()

	if s.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "scheduler.dispatch",
			attribute.String(otelhelper.WorkflowIDKey, r.instance.ID),
			attribute.String(otelhelper.JobIDKey, job.ID),
			attribute.String(otelhelper.JobTypeKey, job.Type),
			attribute.String(otelhelper.JobNameKey, job.Name),
			attribute.String(otelhelper.QueueKey, job.Queue.Queue),
		)
		defer span.End()
	}

	NewJobState(job).MarkProcessing(now)

	if err := s.persistence.SaveJob(ctx, r.instance.ID, job); err != nil {
		return err
	}

	err := s.dispatcher.Dispatch(ctx, &queue.DispatchedJob{
		WorkflowID: r.instance.ID,
		JobID:      job.ID,
		Type:       job.Type,
		Name:       job.Name,
		Params:     job.Params,
		Queue:      job.Queue,
		Delay:      job.Delay,
	})
	if err != nil {
		otelhelper.SetError(trace.SpanFromContext(ctx), err,
			attribute.String(otelhelper.JobIDKey, job.ID),
		)

		// Roll the status back so a later completion event can retry the
		// dispatch; the job was never handed to the substrate.
		job.Status = models.JobStatusPending
		job.StartedAt = nil

		if saveErr := s.persistence.SaveJob(ctx, r.instance.ID, job); saveErr != nil {
			return saveErr
		}

		return fmt.Errorf("failed to dispatch job %s: %w", job.ID, err)
	}

	processing := &events.JobProcessing{
		BaseEvent: events.NewBaseEvent(events.JobProcessingEvent, r.instance.ID),
		JobID:     job.ID,
		Queue:     job.Queue,
	}
	if err := s.emitHook(ctx, processing); err != nil {
		return err
	}

	s.publish(ctx, r.instance.ID, processing)

	return nil
}

func (s *Scheduler) holdAtGate(ctx context.Context, r *run, job *models.JobNode, now time.Time) error {
	if err := NewJobState(job).MarkGated(now); err != nil {
		return err
	}

	return s.persistence.SaveJob(ctx, r.instance.ID, job)
}

// finish marks the workflow finished and fires the completion callback
// exactly once.
func (s *Scheduler) finish(ctx context.Context, r *run, now time.Time) error {
	ws := NewWorkflowState(r.instance)
	if ws.IsFinished() && r.thenFired {
		return nil
	}

	ws.MarkFinished(now)

	if err := s.persistence.SaveWorkflow(ctx, r.instance); err != nil {
		return err
	}

	var duration time.Duration
	if r.instance.StartedAt != nil {
		duration = now.Sub(*r.instance.StartedAt)
	}

	finished := &events.WorkflowFinished{
		BaseEvent:     events.NewBaseEvent(events.WorkflowFinishedEvent, r.instance.ID),
		Name:          r.instance.Name,
		JobsProcessed: r.instance.JobsProcessed,
		Duration:      duration,
	}
	if err := s.emitHook(ctx, finished); err != nil {
		return err
	}

	s.publish(ctx, r.instance.ID, finished)

	s.logger.InfoContext(ctx, "Workflow finished",
		"workflow_id", r.instance.ID, "name", r.instance.Name, "duration", duration)

	if r.callbacks.Then != nil && !r.thenFired {
		r.thenFired = true
		r.callbacks.Then(ctx, r.instance)
	}

	return nil
}

// runOf returns the tracked run, resuming it from persistence when this
// process did not start the workflow. Resumed runs have no callbacks; those
// live only in the originating process.
func (s *Scheduler) runOf(ctx context.Context, workflowID string) (*run, error) {
	s.mu.Lock()

	if r, ok := s.runs[workflowID]; ok {
		s.mu.Unlock()

		return r, nil
	}

	s.mu.Unlock()

	instance, err := s.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.persistence.JobsByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	r := &run{instance: instance, graph: graph.FromJobs(jobs)}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another completion event may have resumed the run concurrently.
	if existing, ok := s.runs[workflowID]; ok {
		return existing, nil
	}

	s.runs[workflowID] = r

	return r, nil
}

func (s *Scheduler) emitHook(ctx context.Context, event eventbus.Event) error {
	if s.hooks == nil {
		return nil
	}

	return s.hooks.Emit(ctx, event)
}

func (s *Scheduler) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.bus == nil {
		return
	}

	if err := s.bus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}

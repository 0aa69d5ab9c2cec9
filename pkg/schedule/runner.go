// Package schedule starts workflows on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/workflow"
)

// Starter is the scheduler-side surface the runner needs: kick off a run
// from a compiled definition.
type Starter interface {
	StartDefinition(ctx context.Context, def *workflow.Definition) (*models.WorkflowInstance, error)
}

// Runner registers every definition that carries a cron expression and
// starts a fresh workflow instance on each tick. A definition without a
// schedule is rejected at registration, not silently skipped.
type Runner struct {
	starter Starter
	logger  *slog.Logger
	cron    *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewRunner(starter Starter, logger *slog.Logger) *Runner {
	return &Runner{
		starter: starter,
		logger:  logger.With("module", "schedule"),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a scheduled definition. The cron expression is validated
// before the entry is created.
func (r *Runner) Register(def *workflow.Definition) error {
	if def.Schedule == "" {
		return fmt.Errorf("definition %q has no schedule", def.Name)
	}

	if _, err := cron.ParseStandard(def.Schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q for definition %q: %w", def.Schedule, def.Name, err)
	}

	logger := r.logger.With("definition", def.Name, "cron", def.Schedule)

	entryID, err := r.cron.AddFunc(def.Schedule, func() {
		logger.Debug("Schedule fired, starting workflow")

		instance, err := r.starter.StartDefinition(context.Background(), def)
		if err != nil {
			logger.Error("Failed to start scheduled workflow", "error", err)

			return
		}

		logger.Info("Started scheduled workflow", "workflow_id", instance.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron entry for definition %q: %w", def.Name, err)
	}

	r.mu.Lock()
	r.entries[def.Name] = entryID
	r.mu.Unlock()

	logger.Info("Registered scheduled workflow", "entry_id", entryID)

	return nil
}

func (r *Runner) Start() {
	r.logger.Info("Starting schedule runner", "entries", len(r.entries))
	r.cron.Start()
}

// Stop halts the cron scheduler and waits for in-flight starts to return.
func (r *Runner) Stop(ctx context.Context) error {
	r.logger.Info("Stopping schedule runner")

	stopCtx := r.cron.Stop()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/persistence"
)

// WorkflowRepository handles workflow-instance rows.
type WorkflowRepository struct {
	db *sql.DB
}

func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

const workflowColumns = `id, name, job_count, jobs_processed, jobs_failed, finished_job_ids,
	failed_job_ids, version, started_at, finished_at, cancelled_at, created_at, updated_at`

// Save upserts the workflow instance with compare-and-swap semantics: the
// update applies only when the stored version still matches the caller's.
// A lost swap surfaces as ErrVersionConflict so the scheduler can reload
// and retry; this is what serializes completions across worker processes.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowInstance) error {
	finishedJobIDs, err := json.Marshal(workflow.FinishedJobIDs)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	failedJobIDs, err := json.Marshal(workflow.FailedJobIDs)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8 + 1, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			job_count = EXCLUDED.job_count,
			jobs_processed = EXCLUDED.jobs_processed,
			jobs_failed = EXCLUDED.jobs_failed,
			finished_job_ids = EXCLUDED.finished_job_ids,
			failed_job_ids = EXCLUDED.failed_job_ids,
			version = workflows.version + 1,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			cancelled_at = EXCLUDED.cancelled_at,
			updated_at = EXCLUDED.updated_at
		WHERE workflows.version = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.JobCount,
		workflow.JobsProcessed,
		workflow.JobsFailed,
		finishedJobIDs,
		failedJobIDs,
		workflow.Version,
		workflow.StartedAt,
		workflow.FinishedAt,
		workflow.CancelledAt,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, persistence.ErrVersionConflict)
	}

	workflow.Version++

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.WorkflowInstance, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.WorkflowInstance

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow rows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		workflow       models.WorkflowInstance
		finishedJobIDs []byte
		failedJobIDs   []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.JobCount,
		&workflow.JobsProcessed,
		&workflow.JobsFailed,
		&finishedJobIDs,
		&failedJobIDs,
		&workflow.Version,
		&workflow.StartedAt,
		&workflow.FinishedAt,
		&workflow.CancelledAt,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(finishedJobIDs, &workflow.FinishedJobIDs); err != nil {
		return nil, fmt.Errorf("failed to decode finished_job_ids: %w", err)
	}

	if err := json.Unmarshal(failedJobIDs, &workflow.FailedJobIDs); err != nil {
		return nil, fmt.Errorf("failed to decode failed_job_ids: %w", err)
	}

	return &workflow, nil
}

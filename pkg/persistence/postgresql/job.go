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

// JobRepository handles per-run job rows.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, job_type, name, dependencies, position, delay, queue, connection, gated,
	params, status, started_at, gated_at, finished_at, failed_at, error`

func (r *JobRepository) Save(ctx context.Context, workflowID string, job *models.JobNode) error {
	dependencies, err := json.Marshal(job.Dependencies)
	if err != nil {
		return persistence.NewJobError("SaveJob", workflowID, job.ID, err)
	}

	var params []byte
	if job.Params != nil {
		params, err = json.Marshal(job.Params)
		if err != nil {
			return persistence.NewJobError("SaveJob", workflowID, job.ID, err)
		}
	}

	query := `
		INSERT INTO workflow_jobs (workflow_id, ` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (workflow_id, id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			gated_at = EXCLUDED.gated_at,
			finished_at = EXCLUDED.finished_at,
			failed_at = EXCLUDED.failed_at,
			error = EXCLUDED.error
	`

	_, err = r.db.ExecContext(ctx, query,
		workflowID,
		job.ID,
		job.Type,
		job.Name,
		dependencies,
		job.Position,
		job.Delay,
		job.Queue.Queue,
		job.Queue.Connection,
		job.Gated,
		params,
		job.Status,
		job.StartedAt,
		job.GatedAt,
		job.FinishedAt,
		job.FailedAt,
		nullableString(job.Error),
	)
	if err != nil {
		return persistence.NewJobError("SaveJob", workflowID, job.ID, err)
	}

	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, workflowID, jobID string) (*models.JobNode, error) {
	query := `SELECT ` + jobColumns + ` FROM workflow_jobs WHERE workflow_id = $1 AND id = $2`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, workflowID, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJobError("JobByID", workflowID, jobID, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewJobError("JobByID", workflowID, jobID, err)
	}

	return job, nil
}

// ListByWorkflow returns the jobs ordered by graph position.
func (r *JobRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.JobNode, error) {
	query := `SELECT ` + jobColumns + ` FROM workflow_jobs WHERE workflow_id = $1 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, persistence.NewWorkflowError("JobsByWorkflowID", workflowID, err)
	}
	defer rows.Close()

	var jobs []*models.JobNode

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*models.JobNode, error) {
	var (
		job          models.JobNode
		dependencies []byte
		params       []byte
		jobError     sql.NullString
	)

	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Name,
		&dependencies,
		&job.Position,
		&job.Delay,
		&job.Queue.Queue,
		&job.Queue.Connection,
		&job.Gated,
		&params,
		&job.Status,
		&job.StartedAt,
		&job.GatedAt,
		&job.FinishedAt,
		&job.FailedAt,
		&jobError,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(dependencies, &job.Dependencies); err != nil {
		return nil, fmt.Errorf("failed to decode dependencies: %w", err)
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params: %w", err)
		}
	}

	if jobError.Valid {
		job.Error = jobError.String
	}

	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}

	return value
}

// Package postgresql provides PostgreSQL persistence for workflow instances and jobs.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	jobRepo      *JobRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database),
		jobRepo:      NewJobRepository(database),
	}, nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowInstance, error) {
	return p.workflowRepo.List(ctx)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowInstance) error {
	return p.workflowRepo.Save(ctx, workflow)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

func (p *Persistence) SaveJob(ctx context.Context, workflowID string, job *models.JobNode) error {
	return p.jobRepo.Save(ctx, workflowID, job)
}

func (p *Persistence) JobByID(ctx context.Context, workflowID, jobID string) (*models.JobNode, error) {
	return p.jobRepo.GetByID(ctx, workflowID, jobID)
}

func (p *Persistence) JobsByWorkflowID(ctx context.Context, workflowID string) ([]*models.JobNode, error) {
	return p.jobRepo.ListByWorkflow(ctx, workflowID)
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

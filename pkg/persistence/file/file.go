// Package file provides file-based persistence for workflow instances and jobs.
// It is intended for local development and tests; every record is a JSON
// document under the configured root directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped so database-url style configuration works.
func NewPersistence(root string) *Persistence {
	return &Persistence{
		root: strings.Replace(root, "file://", "", 1),
	}
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.root, "workflows", id+".json")
}

func (p *Persistence) jobsDir(workflowID string) string {
	return filepath.Join(p.root, "jobs", workflowID)
}

func (p *Persistence) jobPath(workflowID, jobID string) string {
	return filepath.Join(p.jobsDir(workflowID), jobID+".json")
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowInstance, error) {
	dir := filepath.Join(p.root, "workflows")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.WorkflowInstance{}, nil
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.WorkflowInstance, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// SaveWorkflow persists the instance with compare-and-swap semantics: the
// write succeeds only when the stored version still matches the caller's,
// so concurrent schedulers cannot lose each other's counter updates. On
// success the version advances on disk and on the passed instance.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowInstance) error {
	stored, err := p.WorkflowByID(ctx, workflow.ID)
	if err != nil && !persistence.IsWorkflowNotFound(err) {
		return err
	}

	if stored != nil && stored.Version != workflow.Version {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, persistence.ErrVersionConflict)
	}

	workflow.Version++

	if err := writeJSON(p.workflowPath(workflow.ID), workflow); err != nil {
		workflow.Version--

		return err
	}

	return nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	var workflow models.WorkflowInstance

	err := readJSON(p.workflowPath(id), &workflow)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return &workflow, nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	err := os.Remove(p.workflowPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	if err := os.RemoveAll(p.jobsDir(id)); err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}

func (p *Persistence) SaveJob(_ context.Context, workflowID string, job *models.JobNode) error {
	return writeJSON(p.jobPath(workflowID, job.ID), job)
}

func (p *Persistence) JobByID(_ context.Context, workflowID, jobID string) (*models.JobNode, error) {
	var job models.JobNode

	err := readJSON(p.jobPath(workflowID, jobID), &job)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewJobError("JobByID", workflowID, jobID, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewJobError("JobByID", workflowID, jobID, err)
	}

	return &job, nil
}

// JobsByWorkflowID returns the workflow's jobs ordered by their position in
// the graph, which is the dispatch tie-break order.
func (p *Persistence) JobsByWorkflowID(_ context.Context, workflowID string) ([]*models.JobNode, error) {
	entries, err := os.ReadDir(p.jobsDir(workflowID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.JobNode{}, nil
		}

		return nil, persistence.NewWorkflowError("JobsByWorkflowID", workflowID, err)
	}

	jobs := make([]*models.JobNode, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var job models.JobNode

		err := readJSON(filepath.Join(p.jobsDir(workflowID), entry.Name()), &job)
		if err != nil {
			return nil, persistence.NewWorkflowError("JobsByWorkflowID", workflowID, err)
		}

		jobs = append(jobs, &job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Position < jobs[j].Position
	})

	return jobs, nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file persistence there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	// Write-then-rename so a crash mid-write never leaves a torn record.
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

func readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}

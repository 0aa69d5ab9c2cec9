package file

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturehq/venture/pkg/models"
	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/testutil"
)

func TestSaveAndLoadWorkflow(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence(t.TempDir())

	instance := testutil.CreateTestWorkflow(3)
	require.NoError(t, store.SaveWorkflow(ctx, instance))

	loaded, err := store.WorkflowByID(ctx, instance.ID)
	require.NoError(t, err)

	assert.Equal(t, instance.ID, loaded.ID)
	assert.Equal(t, instance.Name, loaded.Name)
	assert.Equal(t, 3, loaded.JobCount)
}

func TestWorkflowByIDNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence(t.TempDir())

	_, err := store.WorkflowByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowsEmptyRoot(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence(t.TempDir())

	workflows, err := store.Workflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestFileURLPrefixStripped(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewPersistence("file://" + dir)

	instance := testutil.CreateTestWorkflow(1)
	require.NoError(t, store.SaveWorkflow(ctx, instance))

	loaded, err := store.WorkflowByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, loaded.ID)
}

func TestDeleteWorkflowRemovesJobs(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence(t.TempDir())

	instance := testutil.CreateTestWorkflow(1)
	require.NoError(t, store.SaveWorkflow(ctx, instance))

	job := testutil.CreateTestJob()
	require.NoError(t, store.SaveJob(ctx, instance.ID, job))

	require.NoError(t, store.DeleteWorkflow(ctx, instance.ID))

	_, err := store.WorkflowByID(ctx, instance.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = store.JobByID(ctx, instance.ID, job.ID)
	assert.True(t, persistence.IsJobNotFound(err))
}

func TestJobsByWorkflowIDOrderedByPosition(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence(t.TempDir())

	instance := testutil.CreateTestWorkflow(3)
	require.NoError(t, store.SaveWorkflow(ctx, instance))

	// Saved out of order on purpose; reads must honor insertion order.
	for _, job := range []*models.JobNode{
		testutil.CreateTestJob(testutil.WithJobID("c"), func(j *models.JobNode) { j.Position = 2 }),
		testutil.CreateTestJob(testutil.WithJobID("a"), func(j *models.JobNode) { j.Position = 0 }),
		testutil.CreateTestJob(testutil.WithJobID("b"), func(j *models.JobNode) { j.Position = 1 }),
	} {
		require.NoError(t, store.SaveJob(ctx, instance.ID, job))
	}

	jobs, err := store.JobsByWorkflowID(ctx, instance.ID)
	require.NoError(t, err)

	require.Len(t, jobs, 3)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
	assert.Equal(t, "c", jobs[2].ID)
}

func TestSaveJobRoundTripsRunState(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence(t.TempDir())

	instance := testutil.CreateTestWorkflow(1)
	require.NoError(t, store.SaveWorkflow(ctx, instance))

	job := testutil.CreateTestJob(
		testutil.WithDependencies("upstream"),
		testutil.WithStatus(models.JobStatusFailed),
	)
	job.Error = "boom"

	require.NoError(t, store.SaveJob(ctx, instance.ID, job))

	loaded, err := store.JobByID(ctx, instance.ID, job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, loaded.Status)
	assert.Equal(t, "boom", loaded.Error)
	assert.Equal(t, []string{"upstream"}, loaded.Dependencies)
}

func TestSaveWorkflowRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence(t.TempDir())

	instance := testutil.CreateTestWorkflow(2)
	require.NoError(t, store.SaveWorkflow(ctx, instance))

	// A second writer holding the version from the first save loses once
	// the first writer saves again.
	stale := *instance
	require.NoError(t, store.SaveWorkflow(ctx, instance))

	err := store.SaveWorkflow(ctx, &stale)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))

	stored, err := store.WorkflowByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.Version, stored.Version)
}

func TestSaveWorkflowLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewPersistence(root)

	require.NoError(t, store.SaveWorkflow(ctx, testutil.CreateTestWorkflow(1)))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if strings.HasSuffix(path, ".tmp") {
			t.Errorf("temp file left behind: %s", path)
		}

		return nil
	})
	require.NoError(t, err)
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	store := NewPersistence(t.TempDir())
	require.NoError(t, store.HealthCheck(ctx))
}

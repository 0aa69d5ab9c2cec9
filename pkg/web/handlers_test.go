package web_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/venturehq/venture/pkg/mocks"
	"github.com/venturehq/venture/pkg/persistence/file"
	"github.com/venturehq/venture/pkg/registry"
	"github.com/venturehq/venture/pkg/web"
	"github.com/venturehq/venture/pkg/workflow"
)

type fixture struct {
	app       *fiber.App
	scheduler *workflow.Scheduler
}

func setupTestApp(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dispatcher := &mocks.MockDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	scheduler := workflow.NewScheduler(store, dispatcher, logger)

	reg := registry.NewRegistry(logger)
	reg.Register("log", func(_ map[string]any) (registry.Job, error) {
		return nil, nil
	})

	handlers := web.NewAPIHandlers(scheduler, store, reg, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.StartWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/cancel", handlers.CancelWorkflow)
	w.Get("/:id/jobs", handlers.GetWorkflowJobs)
	w.Post("/:id/jobs/:jobId/start", handlers.StartGatedJob)
	w.Post("/:id/jobs/:jobId/retry", handlers.RetryJob)

	app.Get("/job-types", handlers.GetJobTypes)
	app.Get("/health", handlers.HealthCheck)

	return &fixture{app: app, scheduler: scheduler}
}

const validDefinition = `{
	"name": "api run",
	"jobs": [
		{"id": "a", "type": "log", "params": {"message": "hi"}},
		{"id": "b", "type": "log", "depends_on": ["a"], "params": {"message": "bye"}}
	]
}`

func startWorkflow(t *testing.T, f *fixture) web.WorkflowResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader(validDefinition))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var created web.WorkflowResponse

	require.NoError(t, json.Unmarshal(body, &created))

	return created
}

func TestStartWorkflow(t *testing.T) {
	f := setupTestApp(t)

	created := startWorkflow(t, f)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "api run", created.Name)
	assert.Equal(t, 2, created.JobCount)
}

func TestStartWorkflowInvalidDefinition(t *testing.T) {
	f := setupTestApp(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "malformed json",
			body: `{{`,
		},
		{
			name: "missing jobs",
			body: `{"name": "no jobs"}`,
		},
		{
			name: "unknown job type",
			body: `{"name": "bad type", "jobs": [{"id": "a", "type": "ghost"}]}`,
		},
		{
			name: "unknown dependency",
			body: `{"name": "bad dep", "jobs": [{"id": "a", "type": "log", "depends_on": ["ghost"]}]}`,
		},
		{
			name: "circular dependency",
			body: `{"name": "cycle", "jobs": [{"id": "a", "type": "log", "depends_on_any": [{"primary": "b"}]}, {"id": "b", "type": "log", "depends_on": ["a"]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := f.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetWorkflow(t *testing.T) {
	f := setupTestApp(t)
	created := startWorkflow(t, f)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var loaded web.WorkflowResponse

	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, created.ID, loaded.ID)
}

func TestGetWorkflowNotFound(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflowJobs(t *testing.T) {
	f := setupTestApp(t)
	created := startWorkflow(t, f)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+created.ID+"/jobs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var jobs []web.JobResponse

	require.NoError(t, json.Unmarshal(body, &jobs))
	require.Len(t, jobs, 2)

	// The root was dispatched, its dependent is still pending.
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "processing", jobs[0].Status)
	assert.Equal(t, "pending", jobs[1].Status)
}

func TestCancelWorkflow(t *testing.T) {
	f := setupTestApp(t)
	created := startWorkflow(t, f)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/workflows/"+created.ID+"/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+created.ID, nil))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var loaded web.WorkflowResponse

	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.True(t, loaded.Cancelled)
}

func TestStartGatedJobRejectsNonGated(t *testing.T) {
	f := setupTestApp(t)
	created := startWorkflow(t, f)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/workflows/"+created.ID+"/jobs/a/start", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRetryJobRejectsNonFailed(t *testing.T) {
	f := setupTestApp(t)
	created := startWorkflow(t, f)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/workflows/"+created.ID+"/jobs/a/retry", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteRunningWorkflowRejected(t *testing.T) {
	f := setupTestApp(t)
	created := startWorkflow(t, f)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteCancelledWorkflow(t *testing.T) {
	f := setupTestApp(t)
	created := startWorkflow(t, f)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/workflows/"+created.ID+"/cancel", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestGetJobTypes(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/job-types", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload map[string][]string

	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Contains(t, payload["types"], "log")
}

func TestHealthCheck(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

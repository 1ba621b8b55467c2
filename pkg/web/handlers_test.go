package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/buildflow/pkg/events"
	"github.com/dukex/buildflow/pkg/handlers"
	"github.com/dukex/buildflow/pkg/mocks"
	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence/file"
	"github.com/dukex/buildflow/pkg/rules"
	"github.com/dukex/buildflow/pkg/services"
	"github.com/dukex/buildflow/pkg/testutil"
	"github.com/dukex/buildflow/pkg/web"
	"github.com/dukex/buildflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeTimeline struct {
	entries []handlers.TimelineEntry
	err     error
}

func (f *fakeTimeline) Entries(_ context.Context, _ uuid.UUID) ([]handlers.TimelineEntry, error) {
	return f.entries, f.err
}

type testEnv struct {
	app      *fiber.App
	fixture  *testutil.Project
	bus      *mocks.MockEventBus
	reports  *handlers.Reports
	timeline *fakeTimeline
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	fixture := testutil.SeedProject(t.Context(), t, store, testutil.CreateTestTemplate(
		testutil.CreateTestStage("Foundation", 1),
		testutil.CreateTestStage("Framing", 2),
	))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	env := &testEnv{
		app:      fiber.New(),
		fixture:  fixture,
		bus:      bus,
		reports:  handlers.NewReports(slog.Default()),
		timeline: &fakeTimeline{},
	}

	engine := workflow.NewEngine(slog.Default(), store, rules.NewEngine(slog.Default(), rules.DefaultRules()...), bus)

	h := web.NewAPIHandlers(
		engine,
		services.NewProvisioning(slog.Default(), store),
		services.NewAssignments(slog.Default(), store, bus),
		services.NewHealth(store),
		env.reports,
		env.timeline,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	env.app.Get("/health", h.HealthCheck)

	p := env.app.Group("/projects")
	p.Post("/", h.CreateProject)
	p.Post("/:projectId/workflow/execute", h.ExecuteWorkflow)
	p.Post("/:projectId/workflow/can-execute", h.CanExecuteTransition)
	p.Post("/:projectId/tasks/:taskId/assign", h.AssignTask)
	p.Post("/:projectId/tasks/:taskId/accept", h.AcceptAssignment)
	p.Get("/:projectId/report", h.GetReport)
	p.Get("/:projectId/timeline", h.GetTimeline)

	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func (env *testEnv) executePath() string {
	return "/projects/" + env.fixture.Project.ID.String() + "/workflow/execute"
}

func (env *testEnv) stageBody(action models.WorkflowActionType, stageName string) web.ExecuteWorkflowRequest {
	stage := env.fixture.StageByName(stageName)

	return web.ExecuteWorkflowRequest{
		StageID: &stage.ID,
		UserID:  env.fixture.Manager.ID,
		Action:  models.WorkflowAction{Type: action, TargetID: stage.ID},
	}
}

func problemType(t *testing.T, body []byte) string {
	t.Helper()

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))

	problemType, _ := problem["type"].(string)

	return problemType
}

func TestAPIHandlers_ExecuteWorkflow(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodPost, env.executePath(), env.stageBody(models.ActionStartStage, "Foundation"))
	require.Equal(t, http.StatusOK, status, string(body))

	var result models.WorkflowExecutionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Success)
	assert.Equal(t, models.StatusInProgress, result.NewStatus)

	env.bus.AssertCalled(t, "Publish", mock.Anything, env.fixture.Project.ID.String(), mock.AnythingOfType("events.StageStarted"))
}

func TestAPIHandlers_ExecuteWorkflowErrors(t *testing.T) {
	env := setupTestApp(t)

	tests := []struct {
		name           string
		path           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "rule rejection",
			path:           env.executePath(),
			body:           env.stageBody(models.ActionStartStage, "Framing"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "unsupported action",
			path:           env.executePath(),
			body:           env.stageBody(models.ActionApproveStage, "Foundation"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "unsupported_action",
		},
		{
			name:           "unknown action",
			path:           env.executePath(),
			body:           env.stageBody("DEMOLISH_STAGE", "Foundation"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "unknown stage",
			path: env.executePath(),
			body: web.ExecuteWorkflowRequest{
				UserID: env.fixture.Manager.ID,
				Action: models.WorkflowAction{Type: models.ActionStartStage, TargetID: uuid.New()},
			},
			expectedStatus: http.StatusNotFound,
			expectedType:   "not_found",
		},
		{
			name:           "invalid project id",
			path:           "/projects/not-a-uuid/workflow/execute",
			body:           env.stageBody(models.ActionStartStage, "Foundation"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.expectedStatus, status, string(body))
			assert.Equal(t, tt.expectedType, problemType(t, body))
		})
	}
}

func TestAPIHandlers_RuleRejectionCarriesMessage(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodPost, env.executePath(), env.stageBody(models.ActionStartStage, "Framing"))

	require.Equal(t, http.StatusBadRequest, status)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "Previous stages must be completed before starting this stage.", problem["detail"])
}

func TestAPIHandlers_CanExecuteTransition(t *testing.T) {
	env := setupTestApp(t)
	path := "/projects/" + env.fixture.Project.ID.String() + "/workflow/can-execute"

	status, body := env.do(t, http.MethodPost, path, env.stageBody(models.ActionStartStage, "Framing"))
	require.Equal(t, http.StatusOK, status, string(body))

	var verdict rules.Verdict
	require.NoError(t, json.Unmarshal(body, &verdict))
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "sequential_stage", verdict.Rule)

	status, body = env.do(t, http.MethodPost, path, env.stageBody(models.ActionStartStage, "Foundation"))
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &verdict))
	assert.True(t, verdict.Allowed)

	env.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestAPIHandlers_AssignAndAccept(t *testing.T) {
	env := setupTestApp(t)
	task := env.fixture.Tasks[env.fixture.StageByName("Foundation").ID][0]
	base := "/projects/" + env.fixture.Project.ID.String() + "/tasks/" + task.ID.String()

	status, body := env.do(t, http.MethodPost, base+"/accept", web.AcceptAssignmentRequest{UserID: env.fixture.Worker.ID})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = env.do(t, http.MethodPost, base+"/assign", web.AssignTaskRequest{AssigneeID: env.fixture.Worker.ID})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = env.do(t, http.MethodPost, base+"/accept", web.AcceptAssignmentRequest{UserID: env.fixture.Manager.ID})
	assert.Equal(t, http.StatusForbidden, status, string(body))

	status, body = env.do(t, http.MethodPost, base+"/accept", web.AcceptAssignmentRequest{UserID: env.fixture.Worker.ID})
	require.Equal(t, http.StatusOK, status, string(body))

	var accepted models.ProjectTask
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.True(t, accepted.AssignmentAccepted)

	status, _ = env.do(t, http.MethodPost, base+"/accept", web.AcceptAssignmentRequest{UserID: env.fixture.Worker.ID})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPost, base+"/accept", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	env.bus.AssertCalled(t, "Publish", mock.Anything, env.fixture.Project.ID.String(), mock.AnythingOfType("events.AssignmentAccepted"))
}

func TestAPIHandlers_CreateProject(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodPost, "/projects", web.CreateProjectRequest{
		Name:      "Oak Avenue Renovation",
		CompanyID: uuid.New(),
		Template: models.WorkflowTemplate{
			Name: "Renovation",
			Stages: []*models.WorkflowStage{
				{Name: "Demolition", OrderIndex: 1, Tasks: []*models.WorkflowTask{{Name: "Strip interior"}}},
			},
		},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var provisioned services.ProvisionedProject
	require.NoError(t, json.Unmarshal(body, &provisioned))
	assert.Len(t, provisioned.Stages, 1)
	assert.Len(t, provisioned.Tasks, 1)
	assert.Equal(t, models.ProjectStatusActive, provisioned.Project.Status)

	status, _ = env.do(t, http.MethodPost, "/projects", web.CreateProjectRequest{Name: "Oak", CompanyID: uuid.New()})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_Report(t *testing.T) {
	env := setupTestApp(t)
	projectID := env.fixture.Project.ID

	require.NoError(t, env.reports.Handle(t.Context(), &events.StageStarted{
		BaseEvent: events.NewBaseEvent(events.StageStartedEvent, projectID, env.fixture.Manager.ID),
	}))

	status, body := env.do(t, http.MethodGet, "/projects/"+projectID.String()+"/report", nil)
	require.Equal(t, http.StatusOK, status)

	var report handlers.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 1, report.StagesStarted)
}

func TestAPIHandlers_Timeline(t *testing.T) {
	env := setupTestApp(t)
	path := "/projects/" + env.fixture.Project.ID.String() + "/timeline"

	env.timeline.entries = []handlers.TimelineEntry{{StreamID: "1-0", EventType: events.StageStartedEvent}}

	status, body := env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"stream_id":"1-0"`)

	env.timeline.err = errors.New("redis unavailable")

	status, body = env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", problemType(t, body))
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

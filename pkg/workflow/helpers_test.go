package workflow_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/dukex/buildflow/pkg/persistence/file"
	"github.com/dukex/buildflow/pkg/rules"
	"github.com/dukex/buildflow/pkg/testutil"
	"github.com/dukex/buildflow/pkg/workflow"
)

// countingPersistence counts transactions and the writes made through them.
type countingPersistence struct {
	persistence.Persistence

	transactions atomic.Int32
	writes       atomic.Int32
	failUpdate   error
}

func (c *countingPersistence) Transact(ctx context.Context, fn persistence.TxFunc) error {
	c.transactions.Add(1)

	return c.Persistence.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		return fn(ctx, &countingStore{Store: tx, parent: c})
	})
}

type countingStore struct {
	persistence.Store

	parent *countingPersistence
}

func (s *countingStore) UpdateStage(ctx context.Context, stage *models.ProjectStage) error {
	s.parent.writes.Add(1)

	if s.parent.failUpdate != nil {
		return s.parent.failUpdate
	}

	return s.Store.UpdateStage(ctx, stage)
}

func (s *countingStore) UpdateTask(ctx context.Context, task *models.ProjectTask) error {
	s.parent.writes.Add(1)

	if s.parent.failUpdate != nil {
		return s.parent.failUpdate
	}

	return s.Store.UpdateTask(ctx, task)
}

func (s *countingStore) UpdateStep(ctx context.Context, step *models.ProjectStep) error {
	s.parent.writes.Add(1)

	if s.parent.failUpdate != nil {
		return s.parent.failUpdate
	}

	return s.Store.UpdateStep(ctx, step)
}

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []eventbus.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.keys = append(p.keys, key)
	p.events = append(p.events, event)

	return p.err
}

func (p *recordingPublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type harness struct {
	store     *countingPersistence
	publisher *recordingPublisher
	clock     *clock
	engine    *workflow.Engine
	fixture   *testutil.Project
}

func newHarness(t *testing.T, stages ...*models.WorkflowStage) *harness {
	t.Helper()

	store := &countingPersistence{Persistence: file.NewPersistence(t.TempDir())}
	fixture := testutil.SeedProject(t.Context(), t, store.Persistence, testutil.CreateTestTemplate(stages...))

	h := &harness{
		store:     store,
		publisher: &recordingPublisher{},
		clock:     newClock(),
		fixture:   fixture,
	}

	h.engine = workflow.NewEngine(
		slog.Default(),
		store,
		rules.NewEngine(slog.Default(), rules.DefaultRules()...),
		h.publisher,
		workflow.WithClock(h.clock.Now),
	)

	return h
}

func (h *harness) stageRequest(action models.WorkflowActionType, stage *models.ProjectStage) models.WorkflowExecutionRequest {
	return models.WorkflowExecutionRequest{
		ProjectID: h.fixture.Project.ID,
		StageID:   &stage.ID,
		UserID:    h.fixture.Manager.ID,
		Action:    models.WorkflowAction{Type: action, TargetID: stage.ID},
	}
}

func (h *harness) taskRequest(action models.WorkflowActionType, task *models.ProjectTask) models.WorkflowExecutionRequest {
	return models.WorkflowExecutionRequest{
		ProjectID: h.fixture.Project.ID,
		TaskID:    &task.ID,
		UserID:    h.fixture.Manager.ID,
		Action:    models.WorkflowAction{Type: action, TargetID: task.ID},
	}
}

func (h *harness) stepRequest(action models.WorkflowActionType, step *models.ProjectStep) models.WorkflowExecutionRequest {
	return models.WorkflowExecutionRequest{
		ProjectID: h.fixture.Project.ID,
		StepID:    &step.ID,
		UserID:    h.fixture.Manager.ID,
		Action:    models.WorkflowAction{Type: action, TargetID: step.ID},
	}
}

func (h *harness) stageStatus(t *testing.T, stage *models.ProjectStage) models.WorkflowStatus {
	t.Helper()

	stored, err := h.store.StageByID(t.Context(), stage.ProjectID, stage.ID)
	if err != nil {
		t.Fatalf("failed to load stage: %v", err)
	}

	return stored.Status
}

func (h *harness) completeTasks(t *testing.T, stage *models.ProjectStage) {
	t.Helper()

	for _, task := range h.fixture.Tasks[stage.ID] {
		testutil.SetTaskStatus(t.Context(), t, h.store.Persistence, task, models.StatusCompleted)
	}
}

func (h *harness) run(t *testing.T, req models.WorkflowExecutionRequest) *models.WorkflowExecutionResult {
	t.Helper()

	result, err := h.engine.ExecuteWorkflow(t.Context(), req)
	if err != nil {
		t.Fatalf("%s failed: %v", req.Action.Type, err)
	}

	return result
}

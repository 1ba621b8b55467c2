package postgresql_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/dukex/buildflow/pkg/persistence/postgresql"
	"github.com/dukex/buildflow/pkg/testutil"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last
	for _, table := range []string{
		"project_steps", "project_tasks", "project_stages", "users", "projects",
		"workflow_steps", "workflow_tasks", "workflow_stages", "workflow_templates", "schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("buildflow_test"),
			postgres.WithUsername("buildflow"),
			postgres.WithPassword("buildflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx, databaseURL
}

func seed(t *testing.T) (*postgresql.Persistence, context.Context, *testutil.Project) {
	t.Helper()

	store, ctx, _ := setupTestDB(t)
	template := testutil.CreateTestTemplate(
		testutil.CreateTestStage("Framing", 2),
		testutil.CreateTestStage("Foundation", 1, testutil.WithTasks(2, 2)),
	)

	return store, ctx, testutil.SeedProject(ctx, t, store, template)
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	var count int

	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name IN ('project_stages', 'project_tasks', 'project_steps')`,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestPersistence_TemplateRoundTrip(t *testing.T) {
	store, ctx, fixture := seed(t)

	template, err := store.TemplateByID(ctx, fixture.Template.ID)
	require.NoError(t, err)
	require.Len(t, template.Stages, 2)

	foundation := template.Stages[0]
	assert.Equal(t, "Foundation", foundation.Name)
	require.Len(t, foundation.Tasks, 2)
	assert.Len(t, foundation.Tasks[0].Steps, 2)
	assert.Equal(t, 1, foundation.Tasks[0].OrderIndex)
}

func TestPersistence_StagesByProjectFollowsTemplateOrder(t *testing.T) {
	store, ctx, fixture := seed(t)

	stages, err := store.StagesByProject(ctx, fixture.Project.ID)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "Foundation", stages[0].Name)
	assert.Equal(t, "Framing", stages[1].Name)
}

func TestPersistence_TaskAssignmentRoundTrip(t *testing.T) {
	store, ctx, fixture := seed(t)
	task := fixture.Tasks[fixture.StageByName("Foundation").ID][0]

	current, err := store.TaskByID(ctx, fixture.Project.ID, task.ID)
	require.NoError(t, err)
	assert.Nil(t, current.AssigneeID)
	assert.Nil(t, current.StartedAt)

	now := time.Now().UTC().Truncate(time.Millisecond)
	current.AssigneeID = &fixture.Worker.ID
	current.AssignmentAccepted = true
	current.AcceptedAt = &now
	require.NoError(t, store.UpdateTask(ctx, current))

	stored, err := store.TaskByID(ctx, fixture.Project.ID, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, fixture.Worker.ID, *stored.AssigneeID)
	assert.True(t, stored.AssignmentAccepted)
	require.NotNil(t, stored.AcceptedAt)
	assert.WithinDuration(t, now, *stored.AcceptedAt, time.Millisecond)
	assert.Equal(t, int64(2), stored.Version)
}

func TestPersistence_UpdateUsesOptimisticVersion(t *testing.T) {
	store, ctx, fixture := seed(t)
	stage := fixture.StageByName("Foundation")

	first, err := store.StageByID(ctx, fixture.Project.ID, stage.ID)
	require.NoError(t, err)

	second, err := store.StageByID(ctx, fixture.Project.ID, stage.ID)
	require.NoError(t, err)

	first.Status = models.StatusInProgress
	require.NoError(t, store.UpdateStage(ctx, first))

	second.Status = models.StatusSkipped
	err = store.UpdateStage(ctx, second)
	assert.True(t, persistence.IsConcurrentModification(err))

	missing := &models.ProjectStage{ID: uuid.New(), ProjectID: fixture.Project.ID, Version: 1}
	err = store.UpdateStage(ctx, missing)
	assert.True(t, errors.Is(err, persistence.ErrStageNotFound))
}

func TestPersistence_LookupsAreProjectScoped(t *testing.T) {
	store, ctx, fixture := seed(t)
	stage := fixture.StageByName("Framing")

	_, err := store.StageByID(ctx, uuid.New(), stage.ID)
	assert.True(t, persistence.IsNotFound(err))

	_, err = store.ProjectByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, persistence.ErrProjectNotFound))
}

func TestPersistence_TransactRollsBackOnError(t *testing.T) {
	store, ctx, fixture := seed(t)
	stage := fixture.StageByName("Foundation")
	failure := errors.New("abort")

	err := store.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		current, err := tx.StageByID(ctx, fixture.Project.ID, stage.ID)
		if err != nil {
			return err
		}

		current.Status = models.StatusCompleted
		if err := tx.UpdateStage(ctx, current); err != nil {
			return err
		}

		return failure
	})
	require.ErrorIs(t, err, failure)

	stored, err := store.StageByID(ctx, fixture.Project.ID, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

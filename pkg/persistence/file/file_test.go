package file_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/dukex/buildflow/pkg/persistence/file"
	"github.com/dukex/buildflow/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*file.Persistence, *testutil.Project) {
	t.Helper()

	store := file.NewPersistence("file://" + t.TempDir())
	template := testutil.CreateTestTemplate(
		testutil.CreateTestStage("Framing", 2),
		testutil.CreateTestStage("Foundation", 1, testutil.WithTasks(2, 1)),
		testutil.CreateTestStage("Roofing", 3, testutil.WithParallelExecution()),
	)

	return store, testutil.SeedProject(t.Context(), t, store, template)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	assert.NoError(t, store.HealthCheck(t.Context()))

	missing := file.NewPersistence("/definitely/not/here")
	assert.Error(t, missing.HealthCheck(t.Context()))
}

func TestPersistence_StagesByProjectFollowsTemplateOrder(t *testing.T) {
	store, fixture := seed(t)

	stages, err := store.StagesByProject(t.Context(), fixture.Project.ID)
	require.NoError(t, err)
	require.Len(t, stages, 3)

	assert.Equal(t, "Foundation", stages[0].Name)
	assert.Equal(t, "Framing", stages[1].Name)
	assert.Equal(t, "Roofing", stages[2].Name)

	templates, err := store.WorkflowStagesByTemplate(t.Context(), fixture.Template.ID)
	require.NoError(t, err)
	require.Len(t, templates, 3)
	assert.Equal(t, 1, templates[0].OrderIndex)
	assert.True(t, templates[2].ParallelExecution)
}

func TestPersistence_LookupsAreProjectScoped(t *testing.T) {
	store, fixture := seed(t)
	stage := fixture.StageByName("Foundation")

	found, err := store.StageByID(t.Context(), fixture.Project.ID, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, stage.ID, found.ID)

	tasks, err := store.TasksByStage(t.Context(), fixture.Project.ID, stage.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Equal(t, 1, tasks[0].OrderIndex)

	steps, err := store.StepsByTask(t.Context(), fixture.Project.ID, tasks[0].ID)
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	_, err = store.StageByID(t.Context(), fixture.Project.ID, uuid.New())
	assert.True(t, errors.Is(err, persistence.ErrStageNotFound))

	_, err = store.StageByID(t.Context(), uuid.New(), stage.ID)
	assert.True(t, errors.Is(err, persistence.ErrProjectNotFound))

	_, err = store.UserByID(t.Context(), uuid.New())
	assert.True(t, persistence.IsNotFound(err))
}

func TestPersistence_UpdateUsesOptimisticVersion(t *testing.T) {
	store, fixture := seed(t)
	stage := fixture.StageByName("Foundation")

	first, err := store.StageByID(t.Context(), fixture.Project.ID, stage.ID)
	require.NoError(t, err)

	second, err := store.StageByID(t.Context(), fixture.Project.ID, stage.ID)
	require.NoError(t, err)

	first.Status = models.StatusInProgress
	require.NoError(t, store.UpdateStage(t.Context(), first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = models.StatusInProgress
	err = store.UpdateStage(t.Context(), second)
	assert.True(t, persistence.IsConcurrentModification(err))

	stored, err := store.StageByID(t.Context(), fixture.Project.ID, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestPersistence_TransactRollsBackOnError(t *testing.T) {
	store, fixture := seed(t)
	stage := fixture.StageByName("Foundation")
	failure := errors.New("abort")

	err := store.Transact(t.Context(), func(ctx context.Context, tx persistence.Store) error {
		current, err := tx.StageByID(ctx, fixture.Project.ID, stage.ID)
		if err != nil {
			return err
		}

		current.Status = models.StatusCompleted
		if err := tx.UpdateStage(ctx, current); err != nil {
			return err
		}

		updated, err := tx.StageByID(ctx, fixture.Project.ID, stage.ID)
		if err != nil {
			return err
		}

		assert.Equal(t, models.StatusCompleted, updated.Status)

		return failure
	})
	require.ErrorIs(t, err, failure)

	stored, err := store.StageByID(t.Context(), fixture.Project.ID, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestPersistence_ReadsReturnCopies(t *testing.T) {
	store, fixture := seed(t)

	err := store.Transact(t.Context(), func(ctx context.Context, tx persistence.Store) error {
		project, err := tx.ProjectByID(ctx, fixture.Project.ID)
		require.NoError(t, err)

		project.Status = models.ProjectStatusCancelled

		again, err := tx.ProjectByID(ctx, fixture.Project.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectStatusActive, again.Status)

		return nil
	})
	require.NoError(t, err)
}

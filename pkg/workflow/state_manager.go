package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
)

// StateManager writes the outcome of a transition to the single targeted entity.
type StateManager struct{}

func NewStateManager() *StateManager {
	return &StateManager{}
}

// UpdateState applies result to a copy of the targeted entity and saves it. The execution
// context is left untouched. A version conflict is returned as a conflict error.
func (m *StateManager) UpdateState(
	ctx context.Context,
	store persistence.Store,
	execCtx *models.WorkflowExecutionContext,
	result *models.WorkflowExecutionResult,
) error {
	var err error

	switch result.TargetLevel {
	case models.TargetLevelStage:
		stage := *execCtx.Stage
		applyStatus(&stage.Status, &stage.StartedAt, &stage.CompletedAt, result)
		err = store.UpdateStage(ctx, &stage)
	case models.TargetLevelTask:
		task := *execCtx.Task
		applyStatus(&task.Status, &task.StartedAt, &task.CompletedAt, result)
		err = store.UpdateTask(ctx, &task)
	case models.TargetLevelStep:
		step := *execCtx.Step
		applyStatus(&step.Status, &step.StartedAt, &step.CompletedAt, result)
		err = store.UpdateStep(ctx, &step)
	default:
		return NewUnsupportedActionError("UpdateState", result.Action)
	}

	if persistence.IsConcurrentModification(err) {
		return NewConflictError("UpdateState", err)
	}

	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", result.TargetLevel, result.TargetID, err)
	}

	return nil
}

func applyStatus(status *models.WorkflowStatus, startedAt, completedAt **time.Time, result *models.WorkflowExecutionResult) {
	*status = result.NewStatus
	at := result.TransitionedAt

	switch result.NewStatus {
	case models.StatusInProgress:
		if *startedAt == nil {
			*startedAt = &at
		}
	case models.StatusCompleted, models.StatusSkipped:
		*completedAt = &at
	}
}

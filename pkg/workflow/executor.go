package workflow

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukex/buildflow/pkg/models"
)

type transitionFunc func(execCtx *models.WorkflowExecutionContext, now time.Time) (*models.WorkflowExecutionResult, error)

// Executor decides the new status of the targeted entity. It never persists anything.
type Executor struct {
	clock       func() time.Time
	transitions map[models.WorkflowActionType]transitionFunc
}

func NewExecutor(clock func() time.Time) *Executor {
	executor := &Executor{
		clock:       clock,
		transitions: make(map[models.WorkflowActionType]transitionFunc),
	}

	notStartedOrInProgress := []models.WorkflowStatus{models.StatusNotStarted, models.StatusInProgress}
	inProgress := []models.WorkflowStatus{models.StatusInProgress}
	blocked := []models.WorkflowStatus{models.StatusBlocked}
	notStarted := []models.WorkflowStatus{models.StatusNotStarted}

	executor.register(models.ActionStartStage, notStarted, models.StatusInProgress, nil)
	executor.register(models.ActionCompleteStage, notStartedOrInProgress, models.StatusCompleted, tasksFinished)
	executor.register(models.ActionPauseStage, inProgress, models.StatusBlocked, nil)
	executor.register(models.ActionResumeStage, blocked, models.StatusInProgress, nil)

	executor.register(models.ActionStartTask, notStarted, models.StatusInProgress, nil)
	executor.register(models.ActionCompleteTask, notStartedOrInProgress, models.StatusCompleted, stepsFinished)
	executor.register(models.ActionPauseTask, inProgress, models.StatusBlocked, nil)
	executor.register(models.ActionResumeTask, blocked, models.StatusInProgress, nil)

	executor.register(models.ActionStartStep, notStarted, models.StatusInProgress, nil)
	executor.register(models.ActionCompleteStep, notStartedOrInProgress, models.StatusCompleted, nil)
	executor.register(models.ActionSkipStep, notStartedOrInProgress, models.StatusSkipped, nil)

	return executor
}

// Supports reports whether action has a transition.
func (e *Executor) Supports(action models.WorkflowActionType) bool {
	_, ok := e.transitions[action]

	return ok
}

// Execute returns the transition of the context's action. Actions without a registered
// transition fail with an unsupported-action error.
func (e *Executor) Execute(execCtx *models.WorkflowExecutionContext) (*models.WorkflowExecutionResult, error) {
	transition, ok := e.transitions[execCtx.Action.Type]
	if !ok {
		return nil, NewUnsupportedActionError("Execute", execCtx.Action.Type)
	}

	return transition(execCtx, e.clock())
}

func (e *Executor) register(
	action models.WorkflowActionType,
	from []models.WorkflowStatus,
	to models.WorkflowStatus,
	guard func(*models.WorkflowExecutionContext) error,
) {
	level := action.Level()

	e.transitions[action] = func(execCtx *models.WorkflowExecutionContext, now time.Time) (*models.WorkflowExecutionResult, error) {
		name, current, ok := currentStatus(execCtx, level)
		if !ok {
			return nil, NewValidationError("Execute", fmt.Sprintf("%s has no %s to act on", action, strings.ToLower(string(level))))
		}

		if !slices.Contains(from, current) {
			return nil, NewValidationError("Execute",
				fmt.Sprintf("cannot %s: %s %q is %s", strings.ToLower(strings.ReplaceAll(string(action), "_", " ")),
					strings.ToLower(string(level)), name, current))
		}

		if guard != nil {
			if err := guard(execCtx); err != nil {
				return nil, err
			}
		}

		return &models.WorkflowExecutionResult{
			Success:        true,
			Action:         action,
			TargetLevel:    level,
			TargetID:       execCtx.TargetID(),
			PreviousStatus: current,
			NewStatus:      to,
			Message:        fmt.Sprintf("%s %q moved from %s to %s", strings.ToLower(string(level)), name, current, to),
			TransitionedAt: now,
		}, nil
	}
}

func currentStatus(execCtx *models.WorkflowExecutionContext, level models.TargetLevel) (string, models.WorkflowStatus, bool) {
	switch level {
	case models.TargetLevelStage:
		if execCtx.Stage != nil {
			return execCtx.Stage.Name, execCtx.Stage.Status, true
		}
	case models.TargetLevelTask:
		if execCtx.Task != nil {
			return execCtx.Task.Name, execCtx.Task.Status, true
		}
	case models.TargetLevelStep:
		if execCtx.Step != nil {
			return execCtx.Step.Name, execCtx.Step.Status, true
		}
	}

	return "", "", false
}

func tasksFinished(execCtx *models.WorkflowExecutionContext) error {
	for _, task := range execCtx.Tasks {
		if task.Status != models.StatusCompleted && task.Status != models.StatusSkipped {
			return NewValidationError("Execute", "All tasks must be completed before completing this stage.")
		}
	}

	return nil
}

func stepsFinished(execCtx *models.WorkflowExecutionContext) error {
	for _, step := range execCtx.Steps {
		if !step.Status.IsTerminal() {
			return NewValidationError("Execute", "All steps must be completed or skipped before completing this task.")
		}
	}

	return nil
}

package rules

import (
	"context"

	"github.com/dukex/buildflow/pkg/models"
)

// DefaultRules returns the built-in rule set in registration order.
func DefaultRules() []Rule {
	return []Rule{
		ActiveProjectRule{},
		SequentialStageRule{},
		ParentInProgressRule{},
		TaskAssigneeRule{},
	}
}

// SequentialStageRule requires every earlier stage to be completed before a stage starts,
// unless the stage's template allows parallel execution.
type SequentialStageRule struct{}

func (SequentialStageRule) Name() string { return "sequential_stage" }

func (SequentialStageRule) AppliesTo(execCtx *models.WorkflowExecutionContext) bool {
	return execCtx.Action.Type == models.ActionStartStage && execCtx.Stage != nil
}

func (SequentialStageRule) Evaluate(_ context.Context, execCtx *models.WorkflowExecutionContext) bool {
	current, ok := execCtx.TemplateFor(execCtx.Stage)
	if !ok {
		current = execCtx.StageTemplate
	}

	if current == nil {
		return false
	}

	if current.ParallelExecution {
		return true
	}

	for _, stage := range execCtx.Stages {
		if execCtx.Stage != nil && stage.ID == execCtx.Stage.ID {
			continue
		}

		// A sibling without a template cannot be ordered, so it blocks the start.
		template, ok := execCtx.TemplateFor(stage)
		if !ok {
			return false
		}

		if template.OrderIndex >= current.OrderIndex {
			continue
		}

		if stage.Status != models.StatusCompleted {
			return false
		}
	}

	return true
}

func (SequentialStageRule) FailureMessage() string {
	return "Previous stages must be completed before starting this stage."
}

func (SequentialStageRule) Priority() Priority { return PriorityHigh }

func (SequentialStageRule) Type() RuleType { return RuleTypePrerequisite }

// ActiveProjectRule rejects every transition on a project that is not active.
type ActiveProjectRule struct{}

func (ActiveProjectRule) Name() string { return "active_project" }

func (ActiveProjectRule) AppliesTo(execCtx *models.WorkflowExecutionContext) bool {
	return execCtx.Project != nil
}

func (ActiveProjectRule) Evaluate(_ context.Context, execCtx *models.WorkflowExecutionContext) bool {
	return execCtx.Project.Status == models.ProjectStatusActive
}

func (ActiveProjectRule) FailureMessage() string {
	return "Workflow transitions are only allowed on active projects."
}

func (ActiveProjectRule) Priority() Priority { return PriorityCritical }

func (ActiveProjectRule) Type() RuleType { return RuleTypeValidation }

// ParentInProgressRule requires the parent stage of a task, or the parent task of a step,
// to be in progress before the child starts.
type ParentInProgressRule struct{}

func (ParentInProgressRule) Name() string { return "parent_in_progress" }

func (ParentInProgressRule) AppliesTo(execCtx *models.WorkflowExecutionContext) bool {
	switch execCtx.Action.Type {
	case models.ActionStartTask:
		return execCtx.Task != nil
	case models.ActionStartStep:
		return execCtx.Step != nil
	default:
		return false
	}
}

func (ParentInProgressRule) Evaluate(_ context.Context, execCtx *models.WorkflowExecutionContext) bool {
	if execCtx.Action.Type == models.ActionStartTask {
		return execCtx.Stage != nil && execCtx.Stage.Status == models.StatusInProgress
	}

	return execCtx.Task != nil && execCtx.Task.Status == models.StatusInProgress
}

func (ParentInProgressRule) FailureMessage() string {
	return "The parent stage or task must be in progress."
}

func (ParentInProgressRule) Priority() Priority { return PriorityHigh }

func (ParentInProgressRule) Type() RuleType { return RuleTypePrerequisite }

// TaskAssigneeRule lets only the assignee, or a manager, start or complete an assigned task.
type TaskAssigneeRule struct{}

func (TaskAssigneeRule) Name() string { return "task_assignee" }

func (TaskAssigneeRule) AppliesTo(execCtx *models.WorkflowExecutionContext) bool {
	switch execCtx.Action.Type {
	case models.ActionStartTask, models.ActionCompleteTask:
		return execCtx.Task != nil && execCtx.Task.AssigneeID != nil
	default:
		return false
	}
}

func (TaskAssigneeRule) Evaluate(_ context.Context, execCtx *models.WorkflowExecutionContext) bool {
	if execCtx.User == nil {
		return false
	}

	return execCtx.User.IsManager() || *execCtx.Task.AssigneeID == execCtx.User.ID
}

func (TaskAssigneeRule) FailureMessage() string {
	return "Only the assigned user or a manager can change this task."
}

func (TaskAssigneeRule) Priority() Priority { return PriorityMedium }

func (TaskAssigneeRule) Type() RuleType { return RuleTypeResource }

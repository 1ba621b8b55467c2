package models

import "github.com/google/uuid"

// WorkflowActionType is the closed set of transitions a caller may request.
type WorkflowActionType string

const (
	ActionStartStage      WorkflowActionType = "START_STAGE"
	ActionCompleteStage   WorkflowActionType = "COMPLETE_STAGE"
	ActionStartTask       WorkflowActionType = "START_TASK"
	ActionCompleteTask    WorkflowActionType = "COMPLETE_TASK"
	ActionStartStep       WorkflowActionType = "START_STEP"
	ActionCompleteStep    WorkflowActionType = "COMPLETE_STEP"
	ActionPauseStage      WorkflowActionType = "PAUSE_STAGE"
	ActionResumeStage     WorkflowActionType = "RESUME_STAGE"
	ActionPauseTask       WorkflowActionType = "PAUSE_TASK"
	ActionResumeTask      WorkflowActionType = "RESUME_TASK"
	ActionSkipStep        WorkflowActionType = "SKIP_STEP"
	ActionApproveStage    WorkflowActionType = "APPROVE_STAGE"
	ActionRejectStage     WorkflowActionType = "REJECT_STAGE"
	ActionApproveTask     WorkflowActionType = "APPROVE_TASK"
	ActionRejectTask      WorkflowActionType = "REJECT_TASK"
	ActionBlockWorkflow   WorkflowActionType = "BLOCK_WORKFLOW"
	ActionUnblockWorkflow WorkflowActionType = "UNBLOCK_WORKFLOW"
	ActionCancelWorkflow  WorkflowActionType = "CANCEL_WORKFLOW"
)

var actionLevels = map[WorkflowActionType]TargetLevel{
	ActionStartStage:      TargetLevelStage,
	ActionCompleteStage:   TargetLevelStage,
	ActionPauseStage:      TargetLevelStage,
	ActionResumeStage:     TargetLevelStage,
	ActionApproveStage:    TargetLevelStage,
	ActionRejectStage:     TargetLevelStage,
	ActionStartTask:       TargetLevelTask,
	ActionCompleteTask:    TargetLevelTask,
	ActionPauseTask:       TargetLevelTask,
	ActionResumeTask:      TargetLevelTask,
	ActionApproveTask:     TargetLevelTask,
	ActionRejectTask:      TargetLevelTask,
	ActionStartStep:       TargetLevelStep,
	ActionCompleteStep:    TargetLevelStep,
	ActionSkipStep:        TargetLevelStep,
	ActionBlockWorkflow:   TargetLevelWorkflow,
	ActionUnblockWorkflow: TargetLevelWorkflow,
	ActionCancelWorkflow:  TargetLevelWorkflow,
}

// AllActionTypes returns every known action type.
func AllActionTypes() []WorkflowActionType {
	types := make([]WorkflowActionType, 0, len(actionLevels))
	for actionType := range actionLevels {
		types = append(types, actionType)
	}

	return types
}

// IsValid reports whether t belongs to the closed action enumeration.
func (t WorkflowActionType) IsValid() bool {
	_, ok := actionLevels[t]

	return ok
}

// Level returns the granularity the action addresses.
func (t WorkflowActionType) Level() TargetLevel {
	return actionLevels[t]
}

// WorkflowAction is the requested transition and the entity it targets.
type WorkflowAction struct {
	Type     WorkflowActionType `json:"type"      validate:"required,workflow_action"`
	TargetID uuid.UUID          `json:"target_id"`
}

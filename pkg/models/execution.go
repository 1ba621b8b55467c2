package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowExecutionRequest is the inbound request to run one workflow transition.
// Only the id matching the action level is needed; Action.TargetID is used when it is absent.
type WorkflowExecutionRequest struct {
	ProjectID uuid.UUID      `json:"project_id" validate:"required"`
	StageID   *uuid.UUID     `json:"stage_id,omitempty"`
	TaskID    *uuid.UUID     `json:"task_id,omitempty"`
	StepID    *uuid.UUID     `json:"step_id,omitempty"`
	UserID    uuid.UUID      `json:"user_id"    validate:"required"`
	Action    WorkflowAction `json:"action"     validate:"required"`
}

// WorkflowExecutionContext is the fully resolved input of one pipeline run. It is built once
// per request and must not be modified after construction.
type WorkflowExecutionContext struct {
	Project *Project
	User    *User
	Action  WorkflowAction

	// Stage is the targeted stage, or the parent stage of the targeted task or step.
	Stage         *ProjectStage
	StageTemplate *WorkflowStage

	// Stages holds every stage of the project ordered by template order index, with
	// StageTemplates keyed by WorkflowStage id.
	Stages         []*ProjectStage
	StageTemplates map[uuid.UUID]*WorkflowStage

	// Task is the targeted task, or the parent task of the targeted step. Tasks holds the
	// tasks of Stage.
	Task  *ProjectTask
	Tasks []*ProjectTask

	// Step is the targeted step. Steps holds the steps of Task.
	Step  *ProjectStep
	Steps []*ProjectStep

	RequestedAt time.Time
}

// TemplateFor returns the template of a project stage.
func (c *WorkflowExecutionContext) TemplateFor(stage *ProjectStage) (*WorkflowStage, bool) {
	if c.StageTemplates == nil || stage == nil {
		return nil, false
	}

	template, ok := c.StageTemplates[stage.WorkflowStageID]

	return template, ok
}

// TargetID returns the id of the entity the action addresses.
func (c *WorkflowExecutionContext) TargetID() uuid.UUID {
	switch c.Action.Type.Level() {
	case TargetLevelStage:
		if c.Stage != nil {
			return c.Stage.ID
		}
	case TargetLevelTask:
		if c.Task != nil {
			return c.Task.ID
		}
	case TargetLevelStep:
		if c.Step != nil {
			return c.Step.ID
		}
	case TargetLevelWorkflow:
		if c.Project != nil {
			return c.Project.ID
		}
	}

	return c.Action.TargetID
}

// WorkflowExecutionResult is the decision of the executor for one transition.
type WorkflowExecutionResult struct {
	Success        bool               `json:"success"`
	Action         WorkflowActionType `json:"action"`
	TargetLevel    TargetLevel        `json:"target_level"`
	TargetID       uuid.UUID          `json:"target_id"`
	PreviousStatus WorkflowStatus     `json:"previous_status"`
	NewStatus      WorkflowStatus     `json:"new_status"`
	Message        string             `json:"message"`
	TransitionedAt time.Time          `json:"transitioned_at"`
}

package models

import "github.com/google/uuid"

// WorkflowTemplate is the design-time definition a project is provisioned from.
type WorkflowTemplate struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"        validate:"required"`
	Description string           `json:"description"`
	Stages      []*WorkflowStage `json:"stages"      validate:"required,min=1,dive"`
}

// WorkflowStage is a stage template. OrderIndex defines its sequential position and
// ParallelExecution lets it start regardless of the stages ordered before it.
type WorkflowStage struct {
	ID                uuid.UUID       `json:"id"`
	TemplateID        uuid.UUID       `json:"template_id"`
	Name              string          `json:"name"               validate:"required"`
	OrderIndex        int             `json:"order_index"        validate:"min=0"`
	ParallelExecution bool            `json:"parallel_execution"`
	Tasks             []*WorkflowTask `json:"tasks,omitempty"`
}

// WorkflowTask is a task template inside a stage template.
type WorkflowTask struct {
	ID              uuid.UUID       `json:"id"`
	WorkflowStageID uuid.UUID       `json:"workflow_stage_id"`
	Name            string          `json:"name"              validate:"required"`
	OrderIndex      int             `json:"order_index"`
	Steps           []*WorkflowStep `json:"steps,omitempty"`
}

// WorkflowStep is a step template inside a task template.
type WorkflowStep struct {
	ID             uuid.UUID `json:"id"`
	WorkflowTaskID uuid.UUID `json:"workflow_task_id"`
	Name           string    `json:"name"             validate:"required"`
	OrderIndex     int       `json:"order_index"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStage is the runtime instance of a WorkflowStage for one project.
type ProjectStage struct {
	ID              uuid.UUID      `json:"id"`
	ProjectID       uuid.UUID      `json:"project_id"`
	WorkflowStageID uuid.UUID      `json:"workflow_stage_id"`
	Name            string         `json:"name"`
	Status          WorkflowStatus `json:"status"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Version         int64          `json:"version"`
}

// ProjectTask is the runtime instance of a WorkflowTask inside a project stage.
type ProjectTask struct {
	ID                 uuid.UUID      `json:"id"`
	ProjectID          uuid.UUID      `json:"project_id"`
	ProjectStageID     uuid.UUID      `json:"project_stage_id"`
	WorkflowTaskID     uuid.UUID      `json:"workflow_task_id"`
	Name               string         `json:"name"`
	OrderIndex         int            `json:"order_index"`
	Status             WorkflowStatus `json:"status"`
	AssigneeID         *uuid.UUID     `json:"assignee_id,omitempty"`
	AssignmentAccepted bool           `json:"assignment_accepted"`
	AcceptedAt         *time.Time     `json:"accepted_at,omitempty"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Version            int64          `json:"version"`
}

// ProjectStep is the runtime instance of a WorkflowStep inside a project task.
type ProjectStep struct {
	ID             uuid.UUID      `json:"id"`
	ProjectID      uuid.UUID      `json:"project_id"`
	ProjectTaskID  uuid.UUID      `json:"project_task_id"`
	WorkflowStepID uuid.UUID      `json:"workflow_step_id"`
	Name           string         `json:"name"`
	OrderIndex     int            `json:"order_index"`
	Status         WorkflowStatus `json:"status"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Version        int64          `json:"version"`
}

// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/dukex/buildflow/pkg/models"
	"github.com/google/uuid"
)

// ExecuteWorkflowRequest is the body of the execute and can-execute endpoints. The project
// comes from the path.
type ExecuteWorkflowRequest struct {
	StageID *uuid.UUID            `json:"stage_id,omitempty"`
	TaskID  *uuid.UUID            `json:"task_id,omitempty"`
	StepID  *uuid.UUID            `json:"step_id,omitempty"`
	UserID  uuid.UUID             `json:"user_id"            validate:"required"`
	Action  models.WorkflowAction `json:"action"             validate:"required"`
}

// ToModel converts the request into the engine request of projectID.
func (r ExecuteWorkflowRequest) ToModel(projectID uuid.UUID) models.WorkflowExecutionRequest {
	return models.WorkflowExecutionRequest{
		ProjectID: projectID,
		StageID:   r.StageID,
		TaskID:    r.TaskID,
		StepID:    r.StepID,
		UserID:    r.UserID,
		Action:    r.Action,
	}
}

// CreateProjectRequest provisions a project from an inline template.
type CreateProjectRequest struct {
	Name      string                  `json:"name"       validate:"required,min=3"`
	CompanyID uuid.UUID               `json:"company_id" validate:"required"`
	Template  models.WorkflowTemplate `json:"template"`
}

// AssignTaskRequest sets the assignee of a task.
type AssignTaskRequest struct {
	AssigneeID uuid.UUID `json:"assignee_id" validate:"required"`
}

// AcceptAssignmentRequest is sent by the assignee accepting a task.
type AcceptAssignmentRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

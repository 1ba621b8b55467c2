package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/google/uuid"
)

// ContextBuilder resolves the ids of a request into a WorkflowExecutionContext. It is the
// only pipeline component that reads from persistence.
type ContextBuilder struct {
	clock func() time.Time
}

func NewContextBuilder(clock func() time.Time) *ContextBuilder {
	return &ContextBuilder{clock: clock}
}

// Build loads everything the rules and the executor need for req.
func (b *ContextBuilder) Build(
	ctx context.Context,
	store persistence.Reader,
	req models.WorkflowExecutionRequest,
) (*models.WorkflowExecutionContext, error) {
	project, err := store.ProjectByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	user, err := store.UserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	execCtx := &models.WorkflowExecutionContext{
		Project:     project,
		User:        user,
		Action:      req.Action,
		RequestedAt: b.clock(),
	}

	err = b.resolveTarget(ctx, store, req, execCtx)
	if err != nil {
		return nil, err
	}

	err = b.loadStages(ctx, store, execCtx)
	if err != nil {
		return nil, err
	}

	return execCtx, nil
}

func (b *ContextBuilder) resolveTarget(
	ctx context.Context,
	store persistence.Reader,
	req models.WorkflowExecutionRequest,
	execCtx *models.WorkflowExecutionContext,
) error {
	projectID := req.ProjectID
	level := req.Action.Type.Level()

	if level == models.TargetLevelWorkflow {
		return nil
	}

	targetID, err := targetFor(level, req)
	if err != nil {
		return err
	}

	var stageID, taskID uuid.UUID

	switch level {
	case models.TargetLevelStep:
		execCtx.Step, err = store.StepByID(ctx, projectID, targetID)
		if err != nil {
			return err
		}

		taskID = execCtx.Step.ProjectTaskID
	case models.TargetLevelTask:
		taskID = targetID
	case models.TargetLevelStage:
		stageID = targetID
	}

	if taskID != uuid.Nil {
		execCtx.Task, err = store.TaskByID(ctx, projectID, taskID)
		if err != nil {
			return err
		}

		if req.TaskID != nil && level == models.TargetLevelStep && *req.TaskID != taskID {
			return NewValidationError("BuildContext", "step does not belong to the requested task")
		}

		execCtx.Steps, err = store.StepsByTask(ctx, projectID, taskID)
		if err != nil {
			return err
		}

		stageID = execCtx.Task.ProjectStageID
	}

	execCtx.Stage, err = store.StageByID(ctx, projectID, stageID)
	if err != nil {
		return err
	}

	if req.StageID != nil && level != models.TargetLevelStage && *req.StageID != stageID {
		return NewValidationError("BuildContext", fmt.Sprintf("%s does not belong to the requested stage", strings.ToLower(string(level))))
	}

	execCtx.Tasks, err = store.TasksByStage(ctx, projectID, stageID)
	if err != nil {
		return err
	}

	return nil
}

func (b *ContextBuilder) loadStages(
	ctx context.Context,
	store persistence.Reader,
	execCtx *models.WorkflowExecutionContext,
) error {
	templates, err := store.WorkflowStagesByTemplate(ctx, execCtx.Project.TemplateID)
	if err != nil {
		return err
	}

	execCtx.StageTemplates = make(map[uuid.UUID]*models.WorkflowStage, len(templates))
	for _, template := range templates {
		execCtx.StageTemplates[template.ID] = template
	}

	execCtx.Stages, err = store.StagesByProject(ctx, execCtx.Project.ID)
	if err != nil {
		return err
	}

	if execCtx.Stage == nil {
		return nil
	}

	template, ok := execCtx.TemplateFor(execCtx.Stage)
	if !ok {
		return persistence.NewEntityError("BuildContext", "workflow stage", execCtx.Stage.WorkflowStageID,
			persistence.ErrWorkflowStageNotFound)
	}

	execCtx.StageTemplate = template

	return nil
}

// targetFor picks the id of the level-specific request field, falling back to the action target.
// Both ids set to different entities is a validation error.
func targetFor(level models.TargetLevel, req models.WorkflowExecutionRequest) (uuid.UUID, error) {
	var id *uuid.UUID

	switch level {
	case models.TargetLevelStage:
		id = req.StageID
	case models.TargetLevelTask:
		id = req.TaskID
	case models.TargetLevelStep:
		id = req.StepID
	}

	if id != nil && *id != uuid.Nil {
		if req.Action.TargetID != uuid.Nil && req.Action.TargetID != *id {
			return uuid.Nil, NewValidationError("BuildContext",
				"action target does not match the requested "+strings.ToLower(string(level)))
		}

		return *id, nil
	}

	if req.Action.TargetID != uuid.Nil {
		return req.Action.TargetID, nil
	}

	return uuid.Nil, NewValidationError("BuildContext",
		fmt.Sprintf("%s requires a %s id", req.Action.Type, strings.ToLower(string(level))))
}

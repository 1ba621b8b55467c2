package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/google/uuid"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type store struct {
	q querier
}

const (
	projectColumns = `id, company_id, name, status, template_id, created_at, updated_at`
	stageColumns   = `ps.id, ps.project_id, ps.workflow_stage_id, ps.name, ps.status, ps.started_at, ps.completed_at, ps.updated_at, ps.version`
	taskColumns    = `id, project_id, project_stage_id, workflow_task_id, name, order_index, status, assignee_id, assignment_accepted, accepted_at, started_at, completed_at, updated_at, version`
	stepColumns    = `id, project_id, project_task_id, workflow_step_id, name, order_index, status, started_at, completed_at, updated_at, version`
)

func (s *store) ProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project

	err := s.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id).Scan(
		&project.ID, &project.CompanyID, &project.Name, &project.Status, &project.TemplateID,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "ProjectByID", "project", id, persistence.ErrProjectNotFound)
	}

	return &project, nil
}

func (s *store) SaveProject(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			template_id = EXCLUDED.template_id,
			updated_at = EXCLUDED.updated_at`,
		project.ID, project.CompanyID, project.Name, project.Status, project.TemplateID,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	return nil
}

func (s *store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User

	err := s.q.QueryRowContext(ctx, `SELECT id, company_id, name, email, role FROM users WHERE id = $1`, id).Scan(
		&user.ID, &user.CompanyID, &user.Name, &user.Email, &user.Role,
	)
	if err != nil {
		return nil, notFound(err, "UserByID", "user", id, persistence.ErrUserNotFound)
	}

	return &user, nil
}

func (s *store) SaveUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, company_id, name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			role = EXCLUDED.role`,
		user.ID, user.CompanyID, user.Name, user.Email, user.Role,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

func (s *store) TemplateByID(ctx context.Context, id uuid.UUID) (*models.WorkflowTemplate, error) {
	var template models.WorkflowTemplate

	err := s.q.QueryRowContext(ctx, `SELECT id, name, description FROM workflow_templates WHERE id = $1`, id).Scan(
		&template.ID, &template.Name, &template.Description,
	)
	if err != nil {
		return nil, notFound(err, "TemplateByID", "template", id, persistence.ErrTemplateNotFound)
	}

	template.Stages, err = s.WorkflowStagesByTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	return &template, nil
}

func (s *store) SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workflow_templates (id, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description`,
		template.ID, template.Name, template.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow template: %w", err)
	}

	for _, stage := range template.Stages {
		if stage.ID == uuid.Nil {
			stage.ID = uuid.New()
		}

		stage.TemplateID = template.ID

		_, err = s.q.ExecContext(ctx, `
			INSERT INTO workflow_stages (id, template_id, name, order_index, parallel_execution)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				order_index = EXCLUDED.order_index,
				parallel_execution = EXCLUDED.parallel_execution`,
			stage.ID, stage.TemplateID, stage.Name, stage.OrderIndex, stage.ParallelExecution,
		)
		if err != nil {
			return fmt.Errorf("failed to save workflow stage %s: %w", stage.ID, err)
		}

		for _, task := range stage.Tasks {
			if task.ID == uuid.Nil {
				task.ID = uuid.New()
			}

			task.WorkflowStageID = stage.ID

			_, err = s.q.ExecContext(ctx, `
				INSERT INTO workflow_tasks (id, workflow_stage_id, name, order_index)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, order_index = EXCLUDED.order_index`,
				task.ID, task.WorkflowStageID, task.Name, task.OrderIndex,
			)
			if err != nil {
				return fmt.Errorf("failed to save workflow task %s: %w", task.ID, err)
			}

			for _, step := range task.Steps {
				if step.ID == uuid.Nil {
					step.ID = uuid.New()
				}

				step.WorkflowTaskID = task.ID

				_, err = s.q.ExecContext(ctx, `
					INSERT INTO workflow_steps (id, workflow_task_id, name, order_index)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, order_index = EXCLUDED.order_index`,
					step.ID, step.WorkflowTaskID, step.Name, step.OrderIndex,
				)
				if err != nil {
					return fmt.Errorf("failed to save workflow step %s: %w", step.ID, err)
				}
			}
		}
	}

	return nil
}

// WorkflowStagesByTemplate loads the stage templates together with their task and step definitions.
func (s *store) WorkflowStagesByTemplate(ctx context.Context, templateID uuid.UUID) ([]*models.WorkflowStage, error) {
	stages, err := collect(ctx, s.q, func(row scanner) (*models.WorkflowStage, error) {
		var stage models.WorkflowStage

		err := row.Scan(&stage.ID, &stage.TemplateID, &stage.Name, &stage.OrderIndex, &stage.ParallelExecution)

		return &stage, err
	}, `SELECT id, template_id, name, order_index, parallel_execution
		FROM workflow_stages WHERE template_id = $1 ORDER BY order_index, id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow stages: %w", err)
	}

	tasks, err := collect(ctx, s.q, func(row scanner) (*models.WorkflowTask, error) {
		var task models.WorkflowTask

		err := row.Scan(&task.ID, &task.WorkflowStageID, &task.Name, &task.OrderIndex)

		return &task, err
	}, `SELECT wt.id, wt.workflow_stage_id, wt.name, wt.order_index
		FROM workflow_tasks wt JOIN workflow_stages ws ON ws.id = wt.workflow_stage_id
		WHERE ws.template_id = $1 ORDER BY wt.order_index, wt.id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow tasks: %w", err)
	}

	steps, err := collect(ctx, s.q, func(row scanner) (*models.WorkflowStep, error) {
		var step models.WorkflowStep

		err := row.Scan(&step.ID, &step.WorkflowTaskID, &step.Name, &step.OrderIndex)

		return &step, err
	}, `SELECT wp.id, wp.workflow_task_id, wp.name, wp.order_index
		FROM workflow_steps wp
		JOIN workflow_tasks wt ON wt.id = wp.workflow_task_id
		JOIN workflow_stages ws ON ws.id = wt.workflow_stage_id
		WHERE ws.template_id = $1 ORDER BY wp.order_index, wp.id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}

	tasksByID := make(map[uuid.UUID]*models.WorkflowTask, len(tasks))
	for _, task := range tasks {
		tasksByID[task.ID] = task
	}

	for _, step := range steps {
		if task, ok := tasksByID[step.WorkflowTaskID]; ok {
			task.Steps = append(task.Steps, step)
		}
	}

	stagesByID := make(map[uuid.UUID]*models.WorkflowStage, len(stages))
	for _, stage := range stages {
		stagesByID[stage.ID] = stage
	}

	for _, task := range tasks {
		if stage, ok := stagesByID[task.WorkflowStageID]; ok {
			stage.Tasks = append(stage.Tasks, task)
		}
	}

	return stages, nil
}

func scanStage(row scanner) (*models.ProjectStage, error) {
	var stage models.ProjectStage

	err := row.Scan(
		&stage.ID, &stage.ProjectID, &stage.WorkflowStageID, &stage.Name, &stage.Status,
		&stage.StartedAt, &stage.CompletedAt, &stage.UpdatedAt, &stage.Version,
	)

	return &stage, err
}

func (s *store) StageByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStage, error) {
	stage, err := scanStage(s.q.QueryRowContext(ctx,
		`SELECT `+stageColumns+` FROM project_stages ps WHERE ps.id = $1 AND ps.project_id = $2`, id, projectID))
	if err != nil {
		return nil, notFound(err, "StageByID", "stage", id, persistence.ErrStageNotFound)
	}

	return stage, nil
}

func (s *store) StagesByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectStage, error) {
	stages, err := collect(ctx, s.q, scanStage, `
		SELECT `+stageColumns+`
		FROM project_stages ps JOIN workflow_stages ws ON ws.id = ps.workflow_stage_id
		WHERE ps.project_id = $1
		ORDER BY ws.order_index, ps.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project stages: %w", err)
	}

	return stages, nil
}

func (s *store) CreateStage(ctx context.Context, stage *models.ProjectStage) error {
	if stage.ID == uuid.Nil {
		stage.ID = uuid.New()
	}

	stage.Version = 1
	stage.UpdatedAt = time.Now().UTC()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO project_stages (id, project_id, workflow_stage_id, name, status, started_at, completed_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		stage.ID, stage.ProjectID, stage.WorkflowStageID, stage.Name, stage.Status,
		stage.StartedAt, stage.CompletedAt, stage.UpdatedAt, stage.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create project stage: %w", err)
	}

	return nil
}

func (s *store) UpdateStage(ctx context.Context, stage *models.ProjectStage) error {
	updatedAt := time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE project_stages
		SET status = $3, started_at = $4, completed_at = $5, updated_at = $6, version = version + 1
		WHERE id = $1 AND project_id = $2 AND version = $7`,
		stage.ID, stage.ProjectID, stage.Status, stage.StartedAt, stage.CompletedAt, updatedAt, stage.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update project stage: %w", err)
	}

	err = s.checkUpdated(ctx, result, "project_stages", "UpdateStage", "stage", stage.ProjectID, stage.ID, persistence.ErrStageNotFound)
	if err != nil {
		return err
	}

	stage.Version++
	stage.UpdatedAt = updatedAt

	return nil
}

func scanTask(row scanner) (*models.ProjectTask, error) {
	var task models.ProjectTask

	err := row.Scan(
		&task.ID, &task.ProjectID, &task.ProjectStageID, &task.WorkflowTaskID, &task.Name, &task.OrderIndex,
		&task.Status, &task.AssigneeID, &task.AssignmentAccepted, &task.AcceptedAt,
		&task.StartedAt, &task.CompletedAt, &task.UpdatedAt, &task.Version,
	)

	return &task, err
}

func (s *store) TaskByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectTask, error) {
	task, err := scanTask(s.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM project_tasks WHERE id = $1 AND project_id = $2`, id, projectID))
	if err != nil {
		return nil, notFound(err, "TaskByID", "task", id, persistence.ErrTaskNotFound)
	}

	return task, nil
}

func (s *store) TasksByStage(ctx context.Context, projectID, stageID uuid.UUID) ([]*models.ProjectTask, error) {
	tasks, err := collect(ctx, s.q, scanTask, `
		SELECT `+taskColumns+` FROM project_tasks
		WHERE project_id = $1 AND project_stage_id = $2
		ORDER BY order_index, id`, projectID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project tasks: %w", err)
	}

	return tasks, nil
}

func (s *store) CreateTask(ctx context.Context, task *models.ProjectTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	task.Version = 1
	task.UpdatedAt = time.Now().UTC()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO project_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		task.ID, task.ProjectID, task.ProjectStageID, task.WorkflowTaskID, task.Name, task.OrderIndex,
		task.Status, task.AssigneeID, task.AssignmentAccepted, task.AcceptedAt,
		task.StartedAt, task.CompletedAt, task.UpdatedAt, task.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create project task: %w", err)
	}

	return nil
}

func (s *store) UpdateTask(ctx context.Context, task *models.ProjectTask) error {
	updatedAt := time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE project_tasks
		SET status = $3, assignee_id = $4, assignment_accepted = $5, accepted_at = $6,
			started_at = $7, completed_at = $8, updated_at = $9, version = version + 1
		WHERE id = $1 AND project_id = $2 AND version = $10`,
		task.ID, task.ProjectID, task.Status, task.AssigneeID, task.AssignmentAccepted, task.AcceptedAt,
		task.StartedAt, task.CompletedAt, updatedAt, task.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update project task: %w", err)
	}

	err = s.checkUpdated(ctx, result, "project_tasks", "UpdateTask", "task", task.ProjectID, task.ID, persistence.ErrTaskNotFound)
	if err != nil {
		return err
	}

	task.Version++
	task.UpdatedAt = updatedAt

	return nil
}

func scanStep(row scanner) (*models.ProjectStep, error) {
	var step models.ProjectStep

	err := row.Scan(
		&step.ID, &step.ProjectID, &step.ProjectTaskID, &step.WorkflowStepID, &step.Name, &step.OrderIndex,
		&step.Status, &step.StartedAt, &step.CompletedAt, &step.UpdatedAt, &step.Version,
	)

	return &step, err
}

func (s *store) StepByID(ctx context.Context, projectID, id uuid.UUID) (*models.ProjectStep, error) {
	step, err := scanStep(s.q.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM project_steps WHERE id = $1 AND project_id = $2`, id, projectID))
	if err != nil {
		return nil, notFound(err, "StepByID", "step", id, persistence.ErrStepNotFound)
	}

	return step, nil
}

func (s *store) StepsByTask(ctx context.Context, projectID, taskID uuid.UUID) ([]*models.ProjectStep, error) {
	steps, err := collect(ctx, s.q, scanStep, `
		SELECT `+stepColumns+` FROM project_steps
		WHERE project_id = $1 AND project_task_id = $2
		ORDER BY order_index, id`, projectID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project steps: %w", err)
	}

	return steps, nil
}

func (s *store) CreateStep(ctx context.Context, step *models.ProjectStep) error {
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}

	step.Version = 1
	step.UpdatedAt = time.Now().UTC()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO project_steps (`+stepColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		step.ID, step.ProjectID, step.ProjectTaskID, step.WorkflowStepID, step.Name, step.OrderIndex,
		step.Status, step.StartedAt, step.CompletedAt, step.UpdatedAt, step.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create project step: %w", err)
	}

	return nil
}

func (s *store) UpdateStep(ctx context.Context, step *models.ProjectStep) error {
	updatedAt := time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE project_steps
		SET status = $3, started_at = $4, completed_at = $5, updated_at = $6, version = version + 1
		WHERE id = $1 AND project_id = $2 AND version = $7`,
		step.ID, step.ProjectID, step.Status, step.StartedAt, step.CompletedAt, updatedAt, step.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update project step: %w", err)
	}

	err = s.checkUpdated(ctx, result, "project_steps", "UpdateStep", "step", step.ProjectID, step.ID, persistence.ErrStepNotFound)
	if err != nil {
		return err
	}

	step.Version++
	step.UpdatedAt = updatedAt

	return nil
}

// checkUpdated distinguishes a missing row from a version conflict when an update touched nothing.
func (s *store) checkUpdated(
	ctx context.Context,
	result sql.Result,
	table, op, entity string,
	projectID, id uuid.UUID,
	missing error,
) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected > 0 {
		return nil
	}

	var exists bool

	// table is always a literal from this file.
	err = s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1 AND project_id = $2)`, id, projectID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check %s existence: %w", entity, err)
	}

	if !exists {
		return persistence.NewEntityError(op, entity, id, missing)
	}

	return persistence.NewEntityError(op, entity, id, persistence.ErrConcurrentModification)
}

func collect[T any](
	ctx context.Context,
	q querier,
	scan func(scanner) (T, error),
	query string,
	args ...any,
) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	items := make([]T, 0)

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func notFound(err error, op, entity string, id uuid.UUID, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewEntityError(op, entity, id, sentinel)
	}

	return fmt.Errorf("failed to query %s: %w", entity, err)
}

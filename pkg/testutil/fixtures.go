// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// CreateTestStage creates a sequential stage template with one task holding one step.
func CreateTestStage(name string, orderIndex int, overrides ...func(*models.WorkflowStage)) *models.WorkflowStage {
	stage := &models.WorkflowStage{
		ID:         uuid.New(),
		Name:       name,
		OrderIndex: orderIndex,
	}

	WithTasks(1, 1)(stage)

	for _, override := range overrides {
		override(stage)
	}

	return stage
}

// WithParallelExecution marks the stage template as parallel.
func WithParallelExecution() func(*models.WorkflowStage) {
	return func(s *models.WorkflowStage) {
		s.ParallelExecution = true
	}
}

// WithTasks replaces the stage's tasks with count tasks of stepsPerTask steps each.
func WithTasks(count, stepsPerTask int) func(*models.WorkflowStage) {
	return func(s *models.WorkflowStage) {
		s.Tasks = make([]*models.WorkflowTask, 0, count)

		for i := range count {
			task := &models.WorkflowTask{
				ID:              uuid.New(),
				WorkflowStageID: s.ID,
				Name:            fmt.Sprintf("%s task %d", s.Name, i+1),
				OrderIndex:      i + 1,
			}

			for j := range stepsPerTask {
				task.Steps = append(task.Steps, &models.WorkflowStep{
					ID:             uuid.New(),
					WorkflowTaskID: task.ID,
					Name:           fmt.Sprintf("%s step %d", task.Name, j+1),
					OrderIndex:     j + 1,
				})
			}

			s.Tasks = append(s.Tasks, task)
		}
	}
}

// CreateTestTemplate creates a template from the given stages.
func CreateTestTemplate(stages ...*models.WorkflowStage) *models.WorkflowTemplate {
	template := &models.WorkflowTemplate{
		ID:     uuid.New(),
		Name:   "Residential Build",
		Stages: stages,
	}

	for _, stage := range stages {
		stage.TemplateID = template.ID
	}

	return template
}

// Project is a provisioned project with its users and runtime workflow records.
type Project struct {
	Project  *models.Project
	Template *models.WorkflowTemplate
	Manager  *models.User
	Worker   *models.User

	// Stages follows the template order; StageByName looks them up by template name.
	Stages []*models.ProjectStage
	Tasks  map[uuid.UUID][]*models.ProjectTask
	Steps  map[uuid.UUID][]*models.ProjectStep
}

// StageByName returns the project stage created from the template stage with that name.
func (p *Project) StageByName(name string) *models.ProjectStage {
	for _, stage := range p.Stages {
		if stage.Name == name {
			return stage
		}
	}

	return nil
}

// SeedProject stores the template, a project instantiated from it, and two users.
func SeedProject(ctx context.Context, t *testing.T, store persistence.Persistence, template *models.WorkflowTemplate) *Project {
	t.Helper()

	companyID := uuid.New()
	fixture := &Project{
		Template: template,
		Project: &models.Project{
			ID:         uuid.New(),
			CompanyID:  companyID,
			Name:       "Maple Street Duplex",
			Status:     models.ProjectStatusActive,
			TemplateID: template.ID,
		},
		Manager: &models.User{
			ID:        uuid.New(),
			CompanyID: companyID,
			Name:      "Project Manager",
			Email:     "pm@example.com",
			Role:      models.UserRoleProjectManager,
		},
		Worker: &models.User{
			ID:        uuid.New(),
			CompanyID: companyID,
			Name:      "Site Worker",
			Email:     "worker@example.com",
			Role:      models.UserRoleWorker,
		},
		Tasks: make(map[uuid.UUID][]*models.ProjectTask),
		Steps: make(map[uuid.UUID][]*models.ProjectStep),
	}

	err := store.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		if err := tx.SaveTemplate(ctx, template); err != nil {
			return err
		}

		if err := tx.SaveProject(ctx, fixture.Project); err != nil {
			return err
		}

		if err := tx.SaveUser(ctx, fixture.Manager); err != nil {
			return err
		}

		if err := tx.SaveUser(ctx, fixture.Worker); err != nil {
			return err
		}

		for _, stageTemplate := range template.Stages {
			stage := &models.ProjectStage{
				ProjectID:       fixture.Project.ID,
				WorkflowStageID: stageTemplate.ID,
				Name:            stageTemplate.Name,
				Status:          models.StatusNotStarted,
			}
			if err := tx.CreateStage(ctx, stage); err != nil {
				return err
			}

			fixture.Stages = append(fixture.Stages, stage)

			for _, taskTemplate := range stageTemplate.Tasks {
				task := &models.ProjectTask{
					ProjectID:      fixture.Project.ID,
					ProjectStageID: stage.ID,
					WorkflowTaskID: taskTemplate.ID,
					Name:           taskTemplate.Name,
					OrderIndex:     taskTemplate.OrderIndex,
					Status:         models.StatusNotStarted,
				}
				if err := tx.CreateTask(ctx, task); err != nil {
					return err
				}

				fixture.Tasks[stage.ID] = append(fixture.Tasks[stage.ID], task)

				for _, stepTemplate := range taskTemplate.Steps {
					step := &models.ProjectStep{
						ProjectID:      fixture.Project.ID,
						ProjectTaskID:  task.ID,
						WorkflowStepID: stepTemplate.ID,
						Name:           stepTemplate.Name,
						OrderIndex:     stepTemplate.OrderIndex,
						Status:         models.StatusNotStarted,
					}
					if err := tx.CreateStep(ctx, step); err != nil {
						return err
					}

					fixture.Steps[task.ID] = append(fixture.Steps[task.ID], step)
				}
			}
		}

		return nil
	})
	require.NoError(t, err)

	return fixture
}

// SetStageStatus overwrites a stored stage status outside of the engine.
func SetStageStatus(ctx context.Context, t *testing.T, store persistence.Persistence, stage *models.ProjectStage, status models.WorkflowStatus) {
	t.Helper()

	current, err := store.StageByID(ctx, stage.ProjectID, stage.ID)
	require.NoError(t, err)

	current.Status = status
	require.NoError(t, store.UpdateStage(ctx, current))
}

// SetTaskStatus overwrites a stored task status outside of the engine.
func SetTaskStatus(ctx context.Context, t *testing.T, store persistence.Persistence, task *models.ProjectTask, status models.WorkflowStatus) {
	t.Helper()

	current, err := store.TaskByID(ctx, task.ProjectID, task.ID)
	require.NoError(t, err)

	current.Status = status
	require.NoError(t, store.UpdateTask(ctx, current))
}

// SetStepStatus overwrites a stored step status outside of the engine.
func SetStepStatus(ctx context.Context, t *testing.T, store persistence.Persistence, step *models.ProjectStep, status models.WorkflowStatus) {
	t.Helper()

	current, err := store.StepByID(ctx, step.ProjectID, step.ID)
	require.NoError(t, err)

	current.Status = status
	require.NoError(t, store.UpdateStep(ctx, current))
}

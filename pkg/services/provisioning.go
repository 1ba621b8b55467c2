package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ProvisionedProject is a project with the runtime records created from its template.
type ProvisionedProject struct {
	Project *models.Project
	Stages  []*models.ProjectStage
	Tasks   []*models.ProjectTask
	Steps   []*models.ProjectStep
}

type Provisioning struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	validate    *validator.Validate
	clock       func() time.Time
}

func NewProvisioning(logger *slog.Logger, persistence persistence.Persistence) *Provisioning {
	return &Provisioning{
		logger:      logger.With("module", "provisioning"),
		persistence: persistence,
		validate:    models.NewValidator(),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Provision stores template and project and creates one NOT_STARTED stage, task and step per
// template entry, all in one transaction.
func (p *Provisioning) Provision(
	ctx context.Context,
	project *models.Project,
	template *models.WorkflowTemplate,
) (*ProvisionedProject, error) {
	if project == nil {
		return nil, ErrProjectNil
	}

	if template == nil {
		return nil, ErrTemplateNil
	}

	now := p.clock()

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	if project.Status == "" {
		project.Status = models.ProjectStatusActive
	}

	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}

	project.TemplateID = template.ID
	project.CreatedAt = now
	project.UpdatedAt = now

	assignTemplateIDs(template)

	if err := p.validate.Struct(template); err != nil {
		return nil, NewValidationError("Provision", "invalid_template", err.Error(), ErrInvalidRequest)
	}

	if err := p.validate.Struct(project); err != nil {
		return nil, NewValidationError("Provision", "invalid_project", err.Error(), ErrInvalidRequest)
	}

	provisioned := &ProvisionedProject{Project: project}

	err := p.persistence.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		provisioned.Stages = nil
		provisioned.Tasks = nil
		provisioned.Steps = nil

		if err := tx.SaveTemplate(ctx, template); err != nil {
			return err
		}

		if err := tx.SaveProject(ctx, project); err != nil {
			return err
		}

		return p.createRecords(ctx, tx, provisioned, template)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision project %s: %w", project.ID, err)
	}

	p.logger.InfoContext(ctx, "Project provisioned",
		"project_id", project.ID,
		"template_id", template.ID,
		"stages", len(provisioned.Stages),
		"tasks", len(provisioned.Tasks),
		"steps", len(provisioned.Steps))

	return provisioned, nil
}

func (p *Provisioning) createRecords(
	ctx context.Context,
	tx persistence.Store,
	provisioned *ProvisionedProject,
	template *models.WorkflowTemplate,
) error {
	projectID := provisioned.Project.ID

	for _, stageTemplate := range template.Stages {
		stage := &models.ProjectStage{
			ProjectID:       projectID,
			WorkflowStageID: stageTemplate.ID,
			Name:            stageTemplate.Name,
			Status:          models.StatusNotStarted,
		}
		if err := tx.CreateStage(ctx, stage); err != nil {
			return err
		}

		provisioned.Stages = append(provisioned.Stages, stage)

		for _, taskTemplate := range stageTemplate.Tasks {
			task := &models.ProjectTask{
				ProjectID:      projectID,
				ProjectStageID: stage.ID,
				WorkflowTaskID: taskTemplate.ID,
				Name:           taskTemplate.Name,
				OrderIndex:     taskTemplate.OrderIndex,
				Status:         models.StatusNotStarted,
			}
			if err := tx.CreateTask(ctx, task); err != nil {
				return err
			}

			provisioned.Tasks = append(provisioned.Tasks, task)

			for _, stepTemplate := range taskTemplate.Steps {
				step := &models.ProjectStep{
					ProjectID:      projectID,
					ProjectTaskID:  task.ID,
					WorkflowStepID: stepTemplate.ID,
					Name:           stepTemplate.Name,
					OrderIndex:     stepTemplate.OrderIndex,
					Status:         models.StatusNotStarted,
				}
				if err := tx.CreateStep(ctx, step); err != nil {
					return err
				}

				provisioned.Steps = append(provisioned.Steps, step)
			}
		}
	}

	return nil
}

// assignTemplateIDs fills missing ids and parent references of a template tree.
func assignTemplateIDs(template *models.WorkflowTemplate) {
	for _, stage := range template.Stages {
		if stage.ID == uuid.Nil {
			stage.ID = uuid.New()
		}

		stage.TemplateID = template.ID

		for _, task := range stage.Tasks {
			if task.ID == uuid.Nil {
				task.ID = uuid.New()
			}

			task.WorkflowStageID = stage.ID

			for _, step := range task.Steps {
				if step.ID == uuid.Nil {
					step.ID = uuid.New()
				}

				step.WorkflowTaskID = task.ID
			}
		}
	}
}

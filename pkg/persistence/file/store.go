package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/google/uuid"
)

const (
	projectsDir  = "projects"
	usersDir     = "users"
	templatesDir = "templates"
)

// projectDocument is the on-disk representation of a project and its workflow instance.
type projectDocument struct {
	Project *models.Project        `json:"project"`
	Stages  []*models.ProjectStage `json:"stages"`
	Tasks   []*models.ProjectTask  `json:"tasks"`
	Steps   []*models.ProjectStep  `json:"steps"`
}

// txStore buffers reads and writes of one transaction.
type txStore struct {
	root string

	projects  map[uuid.UUID]*projectDocument
	users     map[uuid.UUID]*models.User
	templates map[uuid.UUID]*models.WorkflowTemplate

	dirtyProjects  map[uuid.UUID]bool
	dirtyUsers     map[uuid.UUID]bool
	dirtyTemplates map[uuid.UUID]bool
}

func newTxStore(root string) *txStore {
	return &txStore{
		root:           root,
		projects:       make(map[uuid.UUID]*projectDocument),
		users:          make(map[uuid.UUID]*models.User),
		templates:      make(map[uuid.UUID]*models.WorkflowTemplate),
		dirtyProjects:  make(map[uuid.UUID]bool),
		dirtyUsers:     make(map[uuid.UUID]bool),
		dirtyTemplates: make(map[uuid.UUID]bool),
	}
}

func (tx *txStore) commit() error {
	for id := range tx.dirtyTemplates {
		if err := writeJSON(tx.root, templatesDir, id, tx.templates[id]); err != nil {
			return err
		}
	}

	for id := range tx.dirtyUsers {
		if err := writeJSON(tx.root, usersDir, id, tx.users[id]); err != nil {
			return err
		}
	}

	for id := range tx.dirtyProjects {
		if err := writeJSON(tx.root, projectsDir, id, tx.projects[id]); err != nil {
			return err
		}
	}

	return nil
}

func (tx *txStore) document(projectID uuid.UUID) (*projectDocument, error) {
	if doc, ok := tx.projects[projectID]; ok {
		return doc, nil
	}

	var doc projectDocument

	found, err := readJSON(tx.root, projectsDir, projectID, &doc)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError("ProjectByID", "project", projectID, persistence.ErrProjectNotFound)
	}

	tx.projects[projectID] = &doc

	return &doc, nil
}

func (tx *txStore) ProjectByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	doc, err := tx.document(id)
	if err != nil {
		return nil, err
	}

	project := *doc.Project

	return &project, nil
}

func (tx *txStore) SaveProject(_ context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now
	stored := *project

	doc, err := tx.document(project.ID)
	if err != nil {
		if !errors.Is(err, persistence.ErrProjectNotFound) {
			return err
		}

		doc = &projectDocument{}
		tx.projects[project.ID] = doc
	}

	doc.Project = &stored
	tx.dirtyProjects[project.ID] = true

	return nil
}

func (tx *txStore) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := tx.users[id]
	if !ok {
		var loaded models.User

		found, err := readJSON(tx.root, usersDir, id, &loaded)
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, persistence.NewEntityError("UserByID", "user", id, persistence.ErrUserNotFound)
		}

		user = &loaded
		tx.users[id] = user
	}

	clone := *user

	return &clone, nil
}

func (tx *txStore) SaveUser(_ context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	stored := *user
	tx.users[user.ID] = &stored
	tx.dirtyUsers[user.ID] = true

	return nil
}

func (tx *txStore) loadTemplate(id uuid.UUID) (*models.WorkflowTemplate, error) {
	if template, ok := tx.templates[id]; ok {
		return template, nil
	}

	var template models.WorkflowTemplate

	found, err := readJSON(tx.root, templatesDir, id, &template)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError("TemplateByID", "template", id, persistence.ErrTemplateNotFound)
	}

	tx.templates[id] = &template

	return &template, nil
}

func (tx *txStore) TemplateByID(_ context.Context, id uuid.UUID) (*models.WorkflowTemplate, error) {
	template, err := tx.loadTemplate(id)
	if err != nil {
		return nil, err
	}

	return cloneTemplate(template)
}

func (tx *txStore) SaveTemplate(_ context.Context, template *models.WorkflowTemplate) error {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}

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

	stored, err := cloneTemplate(template)
	if err != nil {
		return err
	}

	tx.templates[template.ID] = stored
	tx.dirtyTemplates[template.ID] = true

	return nil
}

func (tx *txStore) WorkflowStagesByTemplate(_ context.Context, templateID uuid.UUID) ([]*models.WorkflowStage, error) {
	template, err := tx.loadTemplate(templateID)
	if err != nil {
		return nil, err
	}

	clone, err := cloneTemplate(template)
	if err != nil {
		return nil, err
	}

	stages := clone.Stages
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].OrderIndex < stages[j].OrderIndex })

	return stages, nil
}

func (tx *txStore) StageByID(_ context.Context, projectID, id uuid.UUID) (*models.ProjectStage, error) {
	doc, err := tx.document(projectID)
	if err != nil {
		return nil, err
	}

	for _, stage := range doc.Stages {
		if stage.ID == id {
			clone := *stage

			return &clone, nil
		}
	}

	return nil, persistence.NewEntityError("StageByID", "stage", id, persistence.ErrStageNotFound)
}

func (tx *txStore) StagesByProject(_ context.Context, projectID uuid.UUID) ([]*models.ProjectStage, error) {
	doc, err := tx.document(projectID)
	if err != nil {
		return nil, err
	}

	order := make(map[uuid.UUID]int)

	if doc.Project.TemplateID != uuid.Nil {
		template, err := tx.loadTemplate(doc.Project.TemplateID)
		if err != nil && !errors.Is(err, persistence.ErrTemplateNotFound) {
			return nil, err
		}

		if template != nil {
			for _, stage := range template.Stages {
				order[stage.ID] = stage.OrderIndex
			}
		}
	}

	stages := make([]*models.ProjectStage, 0, len(doc.Stages))
	for _, stage := range doc.Stages {
		clone := *stage
		stages = append(stages, &clone)
	}

	sort.SliceStable(stages, func(i, j int) bool {
		return order[stages[i].WorkflowStageID] < order[stages[j].WorkflowStageID]
	})

	return stages, nil
}

func (tx *txStore) CreateStage(_ context.Context, stage *models.ProjectStage) error {
	doc, err := tx.document(stage.ProjectID)
	if err != nil {
		return err
	}

	if stage.ID == uuid.Nil {
		stage.ID = uuid.New()
	}

	stage.Version = 1
	stage.UpdatedAt = time.Now().UTC()
	stored := *stage
	doc.Stages = append(doc.Stages, &stored)
	tx.dirtyProjects[stage.ProjectID] = true

	return nil
}

func (tx *txStore) UpdateStage(_ context.Context, stage *models.ProjectStage) error {
	doc, err := tx.document(stage.ProjectID)
	if err != nil {
		return err
	}

	for i, existing := range doc.Stages {
		if existing.ID != stage.ID {
			continue
		}

		if existing.Version != stage.Version {
			return persistence.NewEntityError("UpdateStage", "stage", stage.ID, persistence.ErrConcurrentModification)
		}

		stage.Version++
		stage.UpdatedAt = time.Now().UTC()
		stored := *stage
		doc.Stages[i] = &stored
		tx.dirtyProjects[stage.ProjectID] = true

		return nil
	}

	return persistence.NewEntityError("UpdateStage", "stage", stage.ID, persistence.ErrStageNotFound)
}

func (tx *txStore) TaskByID(_ context.Context, projectID, id uuid.UUID) (*models.ProjectTask, error) {
	doc, err := tx.document(projectID)
	if err != nil {
		return nil, err
	}

	for _, task := range doc.Tasks {
		if task.ID == id {
			clone := *task

			return &clone, nil
		}
	}

	return nil, persistence.NewEntityError("TaskByID", "task", id, persistence.ErrTaskNotFound)
}

func (tx *txStore) TasksByStage(_ context.Context, projectID, stageID uuid.UUID) ([]*models.ProjectTask, error) {
	doc, err := tx.document(projectID)
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.ProjectTask, 0)

	for _, task := range doc.Tasks {
		if task.ProjectStageID == stageID {
			clone := *task
			tasks = append(tasks, &clone)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].OrderIndex < tasks[j].OrderIndex })

	return tasks, nil
}

func (tx *txStore) CreateTask(_ context.Context, task *models.ProjectTask) error {
	doc, err := tx.document(task.ProjectID)
	if err != nil {
		return err
	}

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	task.Version = 1
	task.UpdatedAt = time.Now().UTC()
	stored := *task
	doc.Tasks = append(doc.Tasks, &stored)
	tx.dirtyProjects[task.ProjectID] = true

	return nil
}

func (tx *txStore) UpdateTask(_ context.Context, task *models.ProjectTask) error {
	doc, err := tx.document(task.ProjectID)
	if err != nil {
		return err
	}

	for i, existing := range doc.Tasks {
		if existing.ID != task.ID {
			continue
		}

		if existing.Version != task.Version {
			return persistence.NewEntityError("UpdateTask", "task", task.ID, persistence.ErrConcurrentModification)
		}

		task.Version++
		task.UpdatedAt = time.Now().UTC()
		stored := *task
		doc.Tasks[i] = &stored
		tx.dirtyProjects[task.ProjectID] = true

		return nil
	}

	return persistence.NewEntityError("UpdateTask", "task", task.ID, persistence.ErrTaskNotFound)
}

func (tx *txStore) StepByID(_ context.Context, projectID, id uuid.UUID) (*models.ProjectStep, error) {
	doc, err := tx.document(projectID)
	if err != nil {
		return nil, err
	}

	for _, step := range doc.Steps {
		if step.ID == id {
			clone := *step

			return &clone, nil
		}
	}

	return nil, persistence.NewEntityError("StepByID", "step", id, persistence.ErrStepNotFound)
}

func (tx *txStore) StepsByTask(_ context.Context, projectID, taskID uuid.UUID) ([]*models.ProjectStep, error) {
	doc, err := tx.document(projectID)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.ProjectStep, 0)

	for _, step := range doc.Steps {
		if step.ProjectTaskID == taskID {
			clone := *step
			steps = append(steps, &clone)
		}
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].OrderIndex < steps[j].OrderIndex })

	return steps, nil
}

func (tx *txStore) CreateStep(_ context.Context, step *models.ProjectStep) error {
	doc, err := tx.document(step.ProjectID)
	if err != nil {
		return err
	}

	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}

	step.Version = 1
	step.UpdatedAt = time.Now().UTC()
	stored := *step
	doc.Steps = append(doc.Steps, &stored)
	tx.dirtyProjects[step.ProjectID] = true

	return nil
}

func (tx *txStore) UpdateStep(_ context.Context, step *models.ProjectStep) error {
	doc, err := tx.document(step.ProjectID)
	if err != nil {
		return err
	}

	for i, existing := range doc.Steps {
		if existing.ID != step.ID {
			continue
		}

		if existing.Version != step.Version {
			return persistence.NewEntityError("UpdateStep", "step", step.ID, persistence.ErrConcurrentModification)
		}

		step.Version++
		step.UpdatedAt = time.Now().UTC()
		stored := *step
		doc.Steps[i] = &stored
		tx.dirtyProjects[step.ProjectID] = true

		return nil
	}

	return persistence.NewEntityError("UpdateStep", "step", step.ID, persistence.ErrStepNotFound)
}

func cloneTemplate(template *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	data, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template %s: %w", template.ID, err)
	}

	var clone models.WorkflowTemplate

	err = json.Unmarshal(data, &clone)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", template.ID, err)
	}

	return &clone, nil
}

func readJSON(root, dir string, id uuid.UUID, out any) (bool, error) {
	filePath := filepath.Clean(filepath.Join(root, dir, id.String()+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s %s: %w", dir, id, err)
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", dir, id, err)
	}

	return true, nil
}

// writeJSON replaces the document atomically through a rename.
func writeJSON(root, dir string, id uuid.UUID, value any) error {
	err := os.MkdirAll(filepath.Join(root, dir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", dir, id, err)
	}

	filePath := filepath.Join(root, dir, id.String()+".json")
	tmpPath := filePath + ".tmp"

	err = os.WriteFile(tmpPath, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", dir, id, err)
	}

	err = os.Rename(tmpPath, filePath)
	if err != nil {
		return fmt.Errorf("failed to replace %s %s: %w", dir, id, err)
	}

	return nil
}

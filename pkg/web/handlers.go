// Package web provides HTTP handlers and REST API endpoints for project workflows.
package web

import (
	"context"
	"net/http"

	"github.com/dukex/buildflow/pkg/handlers"
	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/services"
	"github.com/dukex/buildflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// ReportReader serves per-project progress reports.
type ReportReader interface {
	Snapshot(projectID uuid.UUID) handlers.Report
}

// TimelineReader serves the stored events of a project.
type TimelineReader interface {
	Entries(ctx context.Context, projectID uuid.UUID) ([]handlers.TimelineEntry, error)
}

type APIHandlers struct {
	engine       *workflow.Engine
	provisioning *services.Provisioning
	assignments  *services.Assignments
	health       *services.Health
	reports      ReportReader
	timeline     TimelineReader
	validator    *validator.Validate
}

func NewAPIHandlers(
	engine *workflow.Engine,
	provisioning *services.Provisioning,
	assignments *services.Assignments,
	health *services.Health,
	reports ReportReader,
	timeline TimelineReader,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:       engine,
		provisioning: provisioning,
		assignments:  assignments,
		health:       health,
		reports:      reports,
		timeline:     timeline,
		validator:    validator,
	}
}

func (h *APIHandlers) CreateProject(c fiber.Ctx) error {
	var req CreateProjectRequest

	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	project := &models.Project{
		Name:      req.Name,
		CompanyID: req.CompanyID,
		Status:    models.ProjectStatusActive,
	}

	template := req.Template

	provisioned, err := h.provisioning.Provision(c.Context(), project, &template)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(provisioned)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	req, projectID, err := h.parseExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.ExecuteWorkflow(c.Context(), req.ToModel(projectID))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CanExecuteTransition(c fiber.Ctx) error {
	req, projectID, err := h.parseExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	verdict, err := h.engine.CanExecuteTransition(c.Context(), req.ToModel(projectID))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(verdict)
}

func (h *APIHandlers) AssignTask(c fiber.Ctx) error {
	projectID, taskID, err := projectAndTask(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req AssignTaskRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.assignments.Assign(c.Context(), projectID, taskID, req.AssigneeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) AcceptAssignment(c fiber.Ctx) error {
	projectID, taskID, err := projectAndTask(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req AcceptAssignmentRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.assignments.Accept(c.Context(), projectID, taskID, req.UserID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) GetReport(c fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return badRequest(c, "invalid project id")
	}

	return c.JSON(h.reports.Snapshot(projectID))
}

func (h *APIHandlers) GetTimeline(c fiber.Ctx) error {
	if h.timeline == nil {
		return notFound(c, "timeline is not enabled")
	}

	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return badRequest(c, "invalid project id")
	}

	entries, err := h.timeline.Entries(c.Context(), projectID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"project_id": projectID,
		"entries":    entries,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.health.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Buildflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Buildflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checks": fiber.Map{
			"persistence": repositoryCheck,
		},
	})
}

func (h *APIHandlers) parseExecuteRequest(c fiber.Ctx) (ExecuteWorkflowRequest, uuid.UUID, error) {
	var req ExecuteWorkflowRequest

	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return req, uuid.Nil, errInvalidProjectID
	}

	if err := c.Bind().Body(&req); err != nil {
		return req, uuid.Nil, errInvalidJSON
	}

	return req, projectID, nil
}

func projectAndTask(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errInvalidProjectID
	}

	taskID, err := uuid.Parse(c.Params("taskId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errInvalidTaskID
	}

	return projectID, taskID, nil
}

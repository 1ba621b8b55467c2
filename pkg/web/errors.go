package web

import (
	"errors"

	"github.com/dukex/buildflow/pkg/services"
	"github.com/dukex/buildflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func statusProblem(c fiber.Ctx, status int, problemType string, detail string) error {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(problem)
}

// handleServiceError maps workflow, service and persistence errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsUnsupportedAction(err):
		return statusProblem(c, fiber.StatusBadRequest, "unsupported_action", err.Error())

	case workflow.IsValidationError(err), services.IsValidationError(err):
		return statusProblem(c, fiber.StatusBadRequest, "validation_error", err.Error())

	case services.IsForbiddenError(err):
		return statusProblem(c, fiber.StatusForbidden, "forbidden", err.Error())

	case workflow.IsNotFound(err):
		return statusProblem(c, fiber.StatusNotFound, "not_found", err.Error())

	case workflow.IsConflict(err):
		return statusProblem(c, fiber.StatusConflict, "concurrent_modification",
			"the targeted entity was modified concurrently; retry the request")

	case services.IsConflictError(err):
		return statusProblem(c, fiber.StatusConflict, "conflict", err.Error())

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}

var (
	errInvalidProjectID = errors.New("invalid project id")
	errInvalidTaskID    = errors.New("invalid task id")
	errInvalidJSON      = errors.New("invalid JSON format")
)

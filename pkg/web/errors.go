package web

import (
	"errors"

	"github.com/genstack/genstack/pkg/components"
	"github.com/genstack/genstack/pkg/services"
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

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrWorkflowNotFound):
		return notFound(c, "workflow_not_found", "workflow not found")

	case errors.Is(err, services.ErrSessionNotFound):
		return notFound(c, "session_not_found", "chat session not found")

	case errors.Is(err, services.ErrDocumentNotFound):
		return notFound(c, "document_not_found", "document not found")

	case isExecutionError(err):
		// A node failed at runtime: the upstream model or knowledge store is
		// the failing party, not the client request.
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("execution_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func isExecutionError(err error) bool {
	var executionErr *components.ExecutionError

	return errors.As(err, &executionErr)
}

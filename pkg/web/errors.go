package web

import (
	"errors"

	"github.com/dukex/enviroflow/pkg/importer"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// IssuesProblem is a problem document carrying the graph findings that rejected a request.
type IssuesProblem struct {
	*problems.Problem

	Errors   []models.Issue `json:"errors"`
	Warnings []models.Issue `json:"warnings"`
}

// ImportProblem is a problem document for a rejected import file.
type ImportProblem struct {
	*problems.Problem

	Code       importer.ErrorCode `json:"code"`
	Violations []string           `json:"violations,omitempty"`
}

// ReadinessProblem is returned when activation is refused.
type ReadinessProblem struct {
	*problems.Problem

	Readiness *services.ReadinessReport `json:"readiness"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func importError(c fiber.Ctx, err *importer.ImportError) error {
	status := fiber.StatusBadRequest
	if err.Code == importer.CodePayloadTooLarge {
		status = fiber.StatusRequestEntityTooLarge
	}

	problem := &ImportProblem{
		Problem: problems.NewStatusProblem(status).
			WithInstance(c.Path()).
			WithType("import_rejected").
			WithDetail(err.Error()),
		Code:       err.Code,
		Violations: err.Violations,
	}

	return c.Status(status).JSON(problem)
}

// handleServiceError maps service layer errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	if importErr, ok := importer.AsImportError(err); ok {
		return importError(c, importErr)
	}

	if graphErr, ok := services.AsGraphValidationError(err); ok {
		problem := &IssuesProblem{
			Problem: problems.NewStatusProblem(fiber.StatusBadRequest).
				WithInstance(c.Path()).
				WithType("graph_invalid").
				WithDetail(graphErr.Error()),
			Errors:   graphErr.Errors,
			Warnings: graphErr.Warnings,
		}

		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	var readinessErr *services.ReadinessError
	if errors.As(err, &readinessErr) {
		problem := &ReadinessProblem{
			Problem: problems.NewStatusProblem(fiber.StatusConflict).
				WithInstance(c.Path()).
				WithType("not_executable").
				WithDetail("workflow cannot run with the current controller state"),
			Readiness: readinessErr.Report,
		}

		return c.Status(fiber.StatusConflict).JSON(problem)
	}

	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsNotFoundError(err):
		problem := problems.NewStatusProblem(fiber.StatusNotFound).
			WithInstance(c.Path()).
			WithType("workflow_not_found").
			WithDetail("workflow not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		return internalError(c, err)
	}
}

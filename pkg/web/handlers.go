package web

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	readinessService  *services.Readiness
	activationService *services.Activation
	transferService   *services.Transfer
	validator         *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	readinessService *services.Readiness,
	activationService *services.Activation,
	transferService *services.Transfer,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		readinessService:  readinessService,
		activationService: activationService,
		transferService:   transferService,
		validator:         validator,
	}
}

// Register mounts every workflow route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Post("/validate", h.ValidateGraph)
	w.Post("/import", h.ImportWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Get("/:id/readiness", h.GetReadiness)
	w.Get("/:id/export", h.ExportWorkflow)
	w.Get("/:id/activity", h.GetActivity)
	w.Post("/:id/activate", h.ActivateWorkflow)
	w.Post("/:id/deactivate", h.DeactivateWorkflow)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

func parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.OwnerID = c.Query("owner_id")
	req.GrowthStage = c.Query("growth_stage")

	if roomID := c.Query("room_id"); roomID != "" {
		req.RoomID = &roomID
	}

	if activeStr := c.Query("is_active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return nil, err
		}

		req.IsActive = &active
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())
	capabilityCheck, capOk := h.readinessService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "EnviroFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk && capOk {
		status = "healthy"
		message = "EnviroFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository":   repositoryCheck,
			"capabilities": capabilityCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// bindWorkflow decodes a workflow body. A non-empty string is the reason it was rejected.
func (h *APIHandlers) bindWorkflow(c fiber.Ctx) (*models.Workflow, string) {
	var req WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, "Invalid JSON format"
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err.Error()
	}

	return req.Workflow(), ""
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	workflow, problem := h.bindWorkflow(c)
	if problem != "" {
		return badRequest(c, problem)
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.withWarnings(c, created))
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	workflow, problem := h.bindWorkflow(c)
	if problem != "" {
		return badRequest(c, problem)
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("id"), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(h.withWarnings(c, updated))
}

// withWarnings attaches the non-blocking structure findings of a saved workflow.
func (h *APIHandlers) withWarnings(c fiber.Ctx, workflow *models.Workflow) WorkflowResponse {
	result := h.workflowService.ValidateGraph(c.Context(), workflow.Graph())

	return WorkflowResponse{Workflow: workflow, Warnings: result.Warnings}
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ValidateGraph(c fiber.Ctx) error {
	var req ValidateGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result := h.workflowService.ValidateGraph(c.Context(), models.WorkflowGraph{Nodes: req.Nodes, Edges: req.Edges})

	return c.JSON(result)
}

func (h *APIHandlers) GetReadiness(c fiber.Ctx) error {
	report, err := h.readinessService.Check(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	workflow, report, err := h.activationService.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow":  workflow,
		"readiness": report,
	})
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	workflow, err := h.activationService.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetActivity(c fiber.Ctx) error {
	limit := services.DefaultActivityLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	entries, err := h.workflowService.Activity(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"activity": entries})
}

// ImportWorkflow takes the raw export file as the request body.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	req := services.ImportRequest{
		Payload: c.Body(),
		OwnerID: c.Query("owner_id"),
	}

	if roomID := c.Query("room_id"); roomID != "" {
		req.RoomID = &roomID
	}

	result, err := h.transferService.Import(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	document, workflow, err := h.transferService.Export(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+exportFilename(workflow.Name)+`"`)

	return c.Send(document)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9]+`)

func exportFilename(name string) string {
	slug := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "workflow"
	}

	return slug + ".enviroflow.json"
}

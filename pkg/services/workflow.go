package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/enviroflow/pkg/eventbus"
	"github.com/dukex/enviroflow/pkg/events"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/otelhelper"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/validation"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultActivityLimit caps activity listings when the caller gives no limit.
const DefaultActivityLimit = 50

type Workflow struct {
	persistence persistence.Persistence
	notifier    notifier
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service. eventBus may be nil.
func NewWorkflow(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
) *Workflow {
	logger = logger.With("module", "workflow_service")

	return &Workflow{
		persistence: persistence,
		notifier:    notifier{persistence: persistence, eventBus: eventBus, logger: logger},
		tracer:      tracer,
		logger:      logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	OwnerID     string
	RoomID      *string
	GrowthStage string
	IsActive    *bool

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	opts := persistence.ListWorkflowsOptions{
		OwnerID:     strings.TrimSpace(req.OwnerID),
		RoomID:      req.RoomID,
		GrowthStage: req.GrowthStage,
		IsActive:    req.IsActive,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}

	if req.OwnerID != "" && opts.OwnerID == "" {
		return nil, ErrEmptyOwnerID
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		switch {
		case persistence.IsInvalidSortField(err):
			return nil, NewValidationError("ListWorkflows", "INVALID_SORT_FIELD",
				fmt.Sprintf("invalid sort field '%s', allowed: created_at, updated_at, name", req.SortBy),
				ErrInvalidSortField)
		case persistence.IsInvalidSortOrder(err):
			return nil, NewValidationError("ListWorkflows", "INVALID_SORT_ORDER",
				fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
				ErrInvalidSortOrder)
		default:
			return nil, fmt.Errorf("failed to list workflows: %w", err)
		}
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("FetchByID", id, ErrWorkflowNotFound)
	}

	return workflow, nil
}

// ValidateGraph runs the structural checks on a candidate graph without storing anything.
func (w *Workflow) ValidateGraph(ctx context.Context, graph models.WorkflowGraph) validation.StructureResult {
	_, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.validate",
		attribute.Int(otelhelper.NodeCountKey, len(graph.Nodes)),
		attribute.Int(otelhelper.EdgeCountKey, len(graph.Edges)),
	)
	defer span.End()

	result := validation.ValidateGraph(graph)
	otelhelper.SetIssueCounts(span, len(result.Errors), len(result.Warnings))

	return result
}

// Create stores a new workflow once its graph passes structural validation.
// Capability findings never block a save; they surface through readiness.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	result, err := w.checkForSave(ctx, "Create", workflow)
	if err != nil {
		return nil, err
	}

	workflow.ID = ""
	workflow.CreatedAt = time.Time{}
	workflow.DeletedAt = nil

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", workflow.ID, "warnings", len(result.Warnings))

	w.notifier.record(ctx, workflow.ID, models.ActivityWorkflowCreated,
		resultFor(0, len(result.Warnings)), warningDetails(result))
	w.notifier.publish(ctx, workflow.ID, events.NewWorkflowSaved(workflow, true, len(result.Warnings)))

	return workflow, nil
}

// Update replaces an existing workflow. The id, creation time and owner of the stored copy are kept.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID string,
	workflow *models.Workflow,
) (*models.Workflow, error) {
	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	result, err := w.checkForSave(ctx, "Update", workflow)
	if err != nil {
		return nil, err
	}

	workflow.ID = workflowID
	workflow.CreatedAt = existing.CreatedAt
	workflow.DeletedAt = nil

	if workflow.Owner == "" {
		workflow.Owner = existing.Owner
	}

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.notifier.record(ctx, workflow.ID, models.ActivityWorkflowUpdated,
		resultFor(0, len(result.Warnings)), warningDetails(result))
	w.notifier.publish(ctx, workflow.ID, events.NewWorkflowSaved(workflow, false, len(result.Warnings)))

	return workflow, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	_, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	err = w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.notifier.record(ctx, workflowID, models.ActivityWorkflowDeleted, models.ActivityResultSuccess, nil)
	w.notifier.publish(ctx, workflowID, events.NewWorkflowDeleted(workflowID))

	return nil
}

// Activity returns the newest activity entries of a workflow.
func (w *Workflow) Activity(ctx context.Context, workflowID string, limit int) ([]*models.ActivityLog, error) {
	_, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	entries, err := w.persistence.ActivityLogRepository().ListByWorkflow(ctx, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}

	return entries, nil
}

func (w *Workflow) checkForSave(ctx context.Context, op string, workflow *models.Workflow) (validation.StructureResult, error) {
	if workflow == nil {
		return validation.StructureResult{}, ErrWorkflowNil
	}

	err := validate.Struct(workflow)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && validationErrors[0].Field() == "Name" &&
			validationErrors[0].Tag() == "required" {
			return validation.StructureResult{}, ErrWorkflowNameRequired
		}

		return validation.StructureResult{}, NewValidationError(op, "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	result := w.ValidateGraph(ctx, workflow.Graph())
	if !result.Valid {
		w.logger.InfoContext(ctx, "Rejected workflow with an invalid graph",
			"op", op, "name", workflow.Name, "errors", len(result.Errors))

		return result, &GraphValidationError{Errors: result.Errors, Warnings: result.Warnings}
	}

	return result, nil
}

func warningDetails(result validation.StructureResult) map[string]any {
	if len(result.Warnings) == 0 {
		return nil
	}

	types := make([]string, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		types = append(types, string(warning.Type))
	}

	return map[string]any{"warnings": types}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/enviroflow/pkg/eventbus"
	"github.com/dukex/enviroflow/pkg/events"
	"github.com/dukex/enviroflow/pkg/importer"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/otelhelper"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ImportRequest is an untrusted export file plus where the new workflow belongs.
type ImportRequest struct {
	Payload []byte
	OwnerID string
	RoomID  *string
}

// ImportResult describes the workflow an import produced.
type ImportResult struct {
	Workflow     *models.Workflow           `json:"workflow"`
	OriginalName string                     `json:"original_name"`
	Renamed      bool                       `json:"renamed"`
	Structure    validation.StructureResult `json:"structure"`
}

// Transfer moves workflows in and out of the system as export files.
type Transfer struct {
	persistence persistence.Persistence
	notifier    notifier
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

func NewTransfer(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
) *Transfer {
	logger = logger.With("module", "transfer_service")

	return &Transfer{
		persistence: persistence,
		notifier:    notifier{persistence: persistence, eventBus: eventBus, logger: logger},
		tracer:      tracer,
		logger:      logger,
		now:         time.Now,
	}
}

// Import sanitizes the payload, validates its graph and stores it under a name unique for the owner.
// Imported workflows start inactive. Rejections are *importer.ImportError or *GraphValidationError.
func (t *Transfer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "workflow.import",
		attribute.Int(otelhelper.PayloadSizeKey, len(req.Payload)),
	)
	defer span.End()

	imported, err := importer.Sanitize(req.Payload)
	if err != nil {
		otelhelper.SetError(span, err)
		t.logger.InfoContext(ctx, "Rejected import payload", "error", err)

		return nil, err
	}

	structure := validation.ValidateGraph(imported.Graph())
	otelhelper.SetIssueCounts(span, len(structure.Errors), len(structure.Warnings))

	if !structure.Valid {
		return nil, &GraphValidationError{Errors: structure.Errors, Warnings: structure.Warnings}
	}

	existing, err := t.persistence.WorkflowRepository().Names(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing workflow names: %w", err)
	}

	name := importer.ResolveName(imported.Name, existing)

	workflow := &models.Workflow{
		Name:        name,
		Description: imported.Description,
		Nodes:       imported.Nodes,
		Edges:       imported.Edges,
		IsActive:    false,
		RoomID:      req.RoomID,
		GrowthStage: imported.GrowthStage,
		Owner:       req.OwnerID,
	}

	err = t.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save imported workflow: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, workflow.ID))

	t.logger.InfoContext(ctx, "Workflow imported",
		"workflow_id", workflow.ID, "name", name, "nodes", len(workflow.Nodes))

	t.notifier.record(ctx, workflow.ID, models.ActivityWorkflowImported,
		resultFor(0, len(structure.Warnings)), map[string]any{
			"original_name": imported.Name,
			"renamed":       name != imported.Name,
		})
	t.notifier.publish(ctx, workflow.ID, events.NewWorkflowImported(workflow, imported.Name))

	return &ImportResult{
		Workflow:     workflow,
		OriginalName: imported.Name,
		Renamed:      name != imported.Name,
		Structure:    structure,
	}, nil
}

// Export renders a stored workflow as an export file.
func (t *Transfer) Export(ctx context.Context, workflowID string) ([]byte, *models.Workflow, error) {
	workflow, err := t.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, nil, persistence.NewWorkflowError("Export", workflowID, ErrWorkflowNotFound)
	}

	data, err := importer.MarshalExport(workflow, t.now())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to export workflow %s: %w", workflowID, err)
	}

	return data, workflow, nil
}

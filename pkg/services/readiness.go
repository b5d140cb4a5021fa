package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/enviroflow/pkg/capability"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/otelhelper"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/snapshot"
	"github.com/dukex/enviroflow/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReadinessReport combines the structural and capability verdicts for a stored workflow.
type ReadinessReport struct {
	WorkflowID string                      `json:"workflow_id"`
	Structure  validation.StructureResult  `json:"structure"`
	Capability capability.CapabilityReport `json:"capability"`
	CanExecute bool                        `json:"can_execute"`
	CheckedAt  time.Time                   `json:"checked_at"`
}

// Errors returns every blocking finding, structural first.
func (r *ReadinessReport) Errors() []models.Issue {
	issues := make([]models.Issue, 0, len(r.Structure.Errors))
	issues = append(issues, r.Structure.Errors...)

	return append(issues, r.Capability.Errors()...)
}

// Warnings returns every advisory finding, structural first.
func (r *ReadinessReport) Warnings() []models.Issue {
	issues := make([]models.Issue, 0, len(r.Structure.Warnings))
	issues = append(issues, r.Structure.Warnings...)

	return append(issues, r.Capability.Warnings()...)
}

// Issues returns all findings.
func (r *ReadinessReport) Issues() []models.Issue {
	return append(r.Errors(), r.Warnings()...)
}

// Readiness re-validates stored workflows against the current controller state.
type Readiness struct {
	persistence persistence.Persistence
	snapshots   snapshot.Provider
	notifier    notifier
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

func NewReadiness(
	logger *slog.Logger,
	persistence persistence.Persistence,
	snapshots snapshot.Provider,
	tracer trace.Tracer,
) *Readiness {
	logger = logger.With("module", "readiness_service")

	return &Readiness{
		persistence: persistence,
		snapshots:   snapshots,
		notifier:    notifier{persistence: persistence, logger: logger},
		tracer:      tracer,
		logger:      logger,
		now:         time.Now,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck reports whether the capability source answers. Sources without a connection are always healthy.
func (r *Readiness) HealthCheck(ctx context.Context) (string, bool) {
	source, ok := r.snapshots.(pinger)
	if !ok {
		return "Capability source is local", true
	}

	err := source.Ping(ctx)
	if err != nil {
		return "Capability source is unhealthy: " + err.Error(), false
	}

	return "Capability source is healthy", true
}

// Check evaluates a stored workflow and records the outcome in its activity log.
func (r *Readiness) Check(ctx context.Context, workflowID string) (*ReadinessReport, error) {
	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("Check", workflowID, ErrWorkflowNotFound)
	}

	report, err := r.Evaluate(ctx, workflow)
	if err != nil {
		return nil, err
	}

	r.notifier.record(ctx, workflowID, models.ActivityReadinessChecked,
		resultFor(len(report.Errors()), len(report.Warnings())), issueDetails(report))

	return report, nil
}

// Evaluate runs both checks on workflow against a snapshot of the controllers it references.
func (r *Readiness) Evaluate(ctx context.Context, workflow *models.Workflow) (*ReadinessReport, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.readiness",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
	)
	defer span.End()

	structure := validation.ValidateGraph(workflow.Graph())

	snap, err := r.snapshots.Snapshot(ctx, workflow.ControllerIDs())
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to read capability snapshot: %w", err)
	}

	report, err := capability.CheckCapabilities(workflow.Nodes, snap)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to check capabilities of workflow %s: %w", workflow.ID, err)
	}

	result := &ReadinessReport{
		WorkflowID: workflow.ID,
		Structure:  structure,
		Capability: report,
		CanExecute: structure.Valid && report.CanExecute,
		CheckedAt:  r.now().UTC(),
	}

	otelhelper.SetIssueCounts(span, len(result.Errors()), len(result.Warnings()))

	r.logger.DebugContext(ctx, "Readiness evaluated",
		"workflow_id", workflow.ID, "can_execute", result.CanExecute, "issues", len(result.Issues()))

	return result, nil
}

func issueDetails(report *ReadinessReport) map[string]any {
	return map[string]any{
		"can_execute": report.CanExecute,
		"errors":      len(report.Errors()),
		"warnings":    len(report.Warnings()),
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/enviroflow/pkg/eventbus"
	"github.com/dukex/enviroflow/pkg/events"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/persistence"
)

// Activation switches workflows on and off. A workflow is only switched on when it could execute now.
type Activation struct {
	persistence persistence.Persistence
	readiness   *Readiness
	notifier    notifier
	logger      *slog.Logger
}

func NewActivation(
	logger *slog.Logger,
	persistence persistence.Persistence,
	readiness *Readiness,
	eventBus eventbus.EventPublisher,
) *Activation {
	logger = logger.With("module", "activation_service")

	return &Activation{
		persistence: persistence,
		readiness:   readiness,
		notifier:    notifier{persistence: persistence, eventBus: eventBus, logger: logger},
		logger:      logger,
	}
}

// Activate marks a workflow active after a passing readiness check. A failing check returns *ReadinessError.
func (a *Activation) Activate(ctx context.Context, workflowID string) (*models.Workflow, *ReadinessReport, error) {
	workflow, err := a.fetch(ctx, "Activate", workflowID)
	if err != nil {
		return nil, nil, err
	}

	report, err := a.readiness.Evaluate(ctx, workflow)
	if err != nil {
		return nil, nil, err
	}

	if !report.CanExecute {
		a.notifier.record(ctx, workflowID, models.ActivityWorkflowActivated, models.ActivityResultFailed,
			issueDetails(report))

		return nil, report, &ReadinessError{WorkflowID: workflowID, Report: report}
	}

	if workflow.IsActive {
		return workflow, report, nil
	}

	workflow.IsActive = true

	err = a.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to activate workflow: %w", err)
	}

	a.logger.InfoContext(ctx, "Workflow activated", "workflow_id", workflowID)

	a.notifier.record(ctx, workflowID, models.ActivityWorkflowActivated,
		resultFor(0, len(report.Warnings())), issueDetails(report))
	a.notifier.publish(ctx, workflowID, events.NewWorkflowSaved(workflow, false, len(report.Warnings())))

	return workflow, report, nil
}

// Deactivate marks a workflow inactive. Deactivating an inactive workflow is a no-op.
func (a *Activation) Deactivate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := a.fetch(ctx, "Deactivate", workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.IsActive {
		return workflow, nil
	}

	workflow.IsActive = false

	err = a.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate workflow: %w", err)
	}

	a.notifier.record(ctx, workflowID, models.ActivityWorkflowDeactivated, models.ActivityResultSuccess, nil)
	a.notifier.publish(ctx, workflowID, events.NewWorkflowSaved(workflow, false, 0))

	return workflow, nil
}

func (a *Activation) fetch(ctx context.Context, op, workflowID string) (*models.Workflow, error) {
	workflow, err := a.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError(op, workflowID, ErrWorkflowNotFound)
	}

	return workflow, nil
}

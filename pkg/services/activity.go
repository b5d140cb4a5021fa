package services

import (
	"context"
	"log/slog"

	"github.com/dukex/enviroflow/pkg/eventbus"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/persistence"
)

// notifier records activity and publishes events. Failures are logged and never fail the operation.
type notifier struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

func (n notifier) record(
	ctx context.Context,
	workflowID string,
	action models.ActivityAction,
	result models.ActivityResult,
	details map[string]any,
) {
	err := n.persistence.ActivityLogRepository().Record(ctx, &models.ActivityLog{
		WorkflowID: workflowID,
		Action:     action,
		Result:     result,
		Details:    details,
	})
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to record activity",
			"workflow_id", workflowID, "action", action, "error", err)
	}
}

func (n notifier) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if n.eventBus == nil {
		return
	}

	err := n.eventBus.Publish(ctx, workflowID, event)
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to publish event",
			"workflow_id", workflowID, "event_type", event.GetType(), "error", err)
	}
}

// resultFor grades an outcome by its findings.
func resultFor(errorCount, warningCount int) models.ActivityResult {
	switch {
	case errorCount > 0:
		return models.ActivityResultFailed
	case warningCount > 0:
		return models.ActivityResultWarning
	default:
		return models.ActivityResultSuccess
	}
}

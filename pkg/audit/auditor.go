// Package audit periodically re-checks active workflows against the live controller state.
// It never fires a workflow; it only reports when one stops (or starts) being executable.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/enviroflow/pkg/eventbus"
	"github.com/dukex/enviroflow/pkg/events"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/services"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs an audit every five minutes.
const DefaultSchedule = "*/5 * * * *"

var ErrAlreadyStarted = errors.New("auditor already started")

// Evaluator produces a readiness report for a workflow. *services.Readiness implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, workflow *models.Workflow) (*services.ReadinessReport, error)
}

// Summary counts the outcome of one audit pass.
type Summary struct {
	Checked  int `json:"checked"`
	Ready    int `json:"ready"`
	NotReady int `json:"not_ready"`
	Changed  int `json:"changed"`
	Failed   int `json:"failed"`
}

type Auditor struct {
	persistence persistence.Persistence
	evaluator   Evaluator
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	schedule    string

	mu   sync.Mutex
	last map[string]bool
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

// NewAuditor validates the cron schedule and builds an idle auditor. eventBus may be nil.
func NewAuditor(
	logger *slog.Logger,
	persistence persistence.Persistence,
	evaluator Evaluator,
	eventBus eventbus.EventPublisher,
	schedule string,
) (*Auditor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid audit schedule '%s': %w", schedule, err)
	}

	return &Auditor{
		persistence: persistence,
		evaluator:   evaluator,
		eventBus:    eventBus,
		logger:      logger.With("module", "auditor"),
		schedule:    schedule,
		last:        make(map[string]bool),
	}, nil
}

// RunOnce audits every active workflow. Per-workflow failures are counted, not returned.
func (a *Auditor) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	workflows, err := a.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load workflows: %w", err)
	}

	seen := make(map[string]bool, len(workflows))

	for _, workflow := range workflows {
		if !workflow.IsActive {
			continue
		}

		seen[workflow.ID] = true
		summary.Checked++

		report, err := a.evaluator.Evaluate(ctx, workflow)
		if err != nil {
			summary.Failed++

			a.logger.ErrorContext(ctx, "Failed to evaluate workflow", "workflow_id", workflow.ID, "error", err)

			continue
		}

		if report.CanExecute {
			summary.Ready++
		} else {
			summary.NotReady++
		}

		for _, issue := range report.Issues() {
			a.logger.WarnContext(ctx, "Workflow readiness issue",
				"workflow_id", workflow.ID,
				"node_id", issue.NodeID,
				"severity", issue.Severity,
				"type", issue.Type,
				"message", issue.Message)
		}

		if a.observe(workflow.ID, report.CanExecute) {
			summary.Changed++

			a.announce(ctx, workflow, report)
		}
	}

	a.forget(seen)

	a.logger.InfoContext(ctx, "Audit finished",
		"checked", summary.Checked,
		"ready", summary.Ready,
		"not_ready", summary.NotReady,
		"changed", summary.Changed,
		"failed", summary.Failed)

	return summary, nil
}

// LastReadiness returns the verdict of the latest audit for a workflow.
func (a *Auditor) LastReadiness(workflowID string) (canExecute bool, known bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	canExecute, known = a.last[workflowID]

	return canExecute, known
}

// Start schedules RunOnce until Stop is called or ctx is done.
func (a *Auditor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cron != nil {
		return ErrAlreadyStarted
	}

	a.ctx, a.stop = context.WithCancel(ctx)

	a.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := a.cron.AddFunc(a.schedule, func() {
		if _, err := a.RunOnce(a.ctx); err != nil {
			a.logger.ErrorContext(a.ctx, "Audit failed", "error", err)
		}
	})
	if err != nil {
		a.cron = nil
		a.stop()

		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	a.cron.Start()
	a.logger.InfoContext(ctx, "Auditor started", "schedule", a.schedule)

	go func() {
		<-a.ctx.Done()
		a.Stop()
	}()

	return nil
}

// Stop halts the schedule and waits for a running audit to finish. Safe to call more than once.
func (a *Auditor) Stop() {
	a.mu.Lock()
	scheduler := a.cron
	a.cron = nil

	if a.stop != nil {
		a.stop()
	}
	a.mu.Unlock()

	if scheduler == nil {
		return
	}

	<-scheduler.Stop().Done()
	a.logger.Info("Auditor stopped")
}

// observe stores the verdict and reports whether it is news. A workflow seen for the first
// time is news only when it cannot execute.
func (a *Auditor) observe(workflowID string, canExecute bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	previous, known := a.last[workflowID]
	a.last[workflowID] = canExecute

	if !known {
		return !canExecute
	}

	return previous != canExecute
}

func (a *Auditor) forget(seen map[string]bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id := range a.last {
		if !seen[id] {
			delete(a.last, id)
		}
	}
}

func (a *Auditor) announce(ctx context.Context, workflow *models.Workflow, report *services.ReadinessReport) {
	result := models.ActivityResultSuccess
	if !report.CanExecute {
		result = models.ActivityResultFailed
	}

	err := a.persistence.ActivityLogRepository().Record(ctx, &models.ActivityLog{
		WorkflowID: workflow.ID,
		Action:     models.ActivityReadinessChanged,
		Result:     result,
		Details: map[string]any{
			"can_execute": report.CanExecute,
			"errors":      len(report.Errors()),
			"warnings":    len(report.Warnings()),
		},
	})
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to record readiness change", "workflow_id", workflow.ID, "error", err)
	}

	if a.eventBus == nil {
		return
	}

	err = a.eventBus.Publish(ctx, workflow.ID,
		events.NewWorkflowReadinessChanged(workflow.ID, report.CanExecute, report.Issues()))
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to publish readiness change", "workflow_id", workflow.ID, "error", err)
	}
}

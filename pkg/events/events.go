// Package events defines the workflow lifecycle events published on the event bus.
package events

import (
	"errors"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is the single topic all workflow lifecycle events share.
const Topic = "enviroflow.workflows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowSavedEvent            EventType = "workflow.saved"
	WorkflowDeletedEvent          EventType = "workflow.deleted"
	WorkflowImportedEvent         EventType = "workflow.imported"
	WorkflowReadinessChangedEvent EventType = "workflow.readiness_changed"
)

var errMissingWorkflowID = errors.New("workflow_id is required")

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// WorkflowSaved is published after a workflow passed structural validation and was stored.
type WorkflowSaved struct {
	BaseEvent

	Name         string `json:"name"`
	Created      bool   `json:"created"`
	IsActive     bool   `json:"is_active"`
	WarningCount int    `json:"warning_count"`
}

func (e WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

func (e *WorkflowSaved) Validate() error {
	if e.WorkflowID == "" {
		return errMissingWorkflowID
	}

	return nil
}

// NewWorkflowSaved builds the event for a freshly stored workflow.
func NewWorkflowSaved(workflow *models.Workflow, created bool, warningCount int) *WorkflowSaved {
	return &WorkflowSaved{
		BaseEvent:    NewBaseEvent(WorkflowSavedEvent, workflow.ID),
		Name:         workflow.Name,
		Created:      created,
		IsActive:     workflow.IsActive,
		WarningCount: warningCount,
	}
}

type WorkflowDeleted struct {
	BaseEvent
}

func (e WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

func (e *WorkflowDeleted) Validate() error {
	if e.WorkflowID == "" {
		return errMissingWorkflowID
	}

	return nil
}

func NewWorkflowDeleted(workflowID string) *WorkflowDeleted {
	return &WorkflowDeleted{BaseEvent: NewBaseEvent(WorkflowDeletedEvent, workflowID)}
}

// WorkflowImported is published when an imported payload became a stored workflow.
type WorkflowImported struct {
	BaseEvent

	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	NodeCount    int    `json:"node_count"`
	EdgeCount    int    `json:"edge_count"`
}

func (e WorkflowImported) GetType() EventType {
	return WorkflowImportedEvent
}

func (e *WorkflowImported) Validate() error {
	if e.WorkflowID == "" {
		return errMissingWorkflowID
	}

	if e.Name == "" {
		return errors.New("name is required")
	}

	return nil
}

func NewWorkflowImported(workflow *models.Workflow, originalName string) *WorkflowImported {
	return &WorkflowImported{
		BaseEvent:    NewBaseEvent(WorkflowImportedEvent, workflow.ID),
		Name:         workflow.Name,
		OriginalName: originalName,
		NodeCount:    len(workflow.Nodes),
		EdgeCount:    len(workflow.Edges),
	}
}

// WorkflowReadinessChanged is published when a workflow flips between executable and not.
type WorkflowReadinessChanged struct {
	BaseEvent

	CanExecute bool           `json:"can_execute"`
	Issues     []models.Issue `json:"issues"`
}

func (e WorkflowReadinessChanged) GetType() EventType {
	return WorkflowReadinessChangedEvent
}

func (e *WorkflowReadinessChanged) Validate() error {
	if e.WorkflowID == "" {
		return errMissingWorkflowID
	}

	return nil
}

func NewWorkflowReadinessChanged(workflowID string, canExecute bool, issues []models.Issue) *WorkflowReadinessChanged {
	if issues == nil {
		issues = make([]models.Issue, 0)
	}

	return &WorkflowReadinessChanged{
		BaseEvent:  NewBaseEvent(WorkflowReadinessChangedEvent, workflowID),
		CanExecute: canExecute,
		Issues:     issues,
	}
}

// New returns an empty event value for the given type, or nil when the type is unknown.
func New(eventType EventType) any {
	switch eventType {
	case WorkflowSavedEvent:
		return &WorkflowSaved{}
	case WorkflowDeletedEvent:
		return &WorkflowDeleted{}
	case WorkflowImportedEvent:
		return &WorkflowImported{}
	case WorkflowReadinessChangedEvent:
		return &WorkflowReadinessChanged{}
	default:
		return nil
	}
}

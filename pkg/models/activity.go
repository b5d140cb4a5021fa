package models

import "time"

// ActivityAction names what happened to a workflow.
type ActivityAction string

const (
	ActivityWorkflowCreated     ActivityAction = "workflow_created"
	ActivityWorkflowUpdated     ActivityAction = "workflow_updated"
	ActivityWorkflowDeleted     ActivityAction = "workflow_deleted"
	ActivityWorkflowImported    ActivityAction = "workflow_imported"
	ActivityWorkflowActivated   ActivityAction = "workflow_activated"
	ActivityWorkflowDeactivated ActivityAction = "workflow_deactivated"
	ActivityReadinessChecked    ActivityAction = "readiness_checked"
	ActivityReadinessChanged    ActivityAction = "readiness_changed"
)

// ActivityResult is the outcome recorded alongside an action.
type ActivityResult string

const (
	ActivityResultSuccess ActivityResult = "success"
	ActivityResultWarning ActivityResult = "warning"
	ActivityResultFailed  ActivityResult = "failed"
)

// ActivityLog records an outcome about a workflow for the room's activity feed.
type ActivityLog struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	Action     ActivityAction `json:"action"`
	Result     ActivityResult `json:"result"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

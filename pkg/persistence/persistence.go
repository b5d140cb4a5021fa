// Package persistence provides the storage abstraction for workflows and their activity logs.
package persistence

import (
	"context"
	"fmt"

	"github.com/dukex/enviroflow/pkg/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Persistence is a storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ActivityLogRepository() ActivityLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow records. GetByID returns nil, nil for unknown or deleted ids.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// Names returns the names of the owner's workflows. An empty owner matches every workflow.
	Names(ctx context.Context, ownerID string) ([]string, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ActivityLogRepository records what happened to workflows.
type ActivityLogRepository interface {
	Record(ctx context.Context, entry *models.ActivityLog) error
	// ListByWorkflow returns the newest entries first.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ActivityLog, error)
}

// ListWorkflowsOptions filters, sorts and pages a workflow listing.
type ListWorkflowsOptions struct {
	OwnerID     string
	RoomID      *string
	GrowthStage string
	IsActive    *bool

	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc

	Limit  int
	Offset int
}

// WorkflowListResult is one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

var allowedSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// Normalize applies defaults and rejects sort parameters outside the allowlist.
func (o *ListWorkflowsOptions) Normalize() error {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "created_at"
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	if !allowedSortFields[o.SortBy] {
		return fmt.Errorf("%w: %s", ErrInvalidSortField, o.SortBy)
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return fmt.Errorf("%w: %s", ErrInvalidSortOrder, o.SortOrder)
	}

	return nil
}

// Matches reports whether a workflow passes the filters.
func (o *ListWorkflowsOptions) Matches(workflow *models.Workflow) bool {
	if o.OwnerID != "" && workflow.Owner != o.OwnerID {
		return false
	}

	if o.RoomID != nil && (workflow.RoomID == nil || *workflow.RoomID != *o.RoomID) {
		return false
	}

	if o.GrowthStage != "" && workflow.GrowthStage != o.GrowthStage {
		return false
	}

	if o.IsActive != nil && workflow.IsActive != *o.IsActive {
		return false
	}

	return true
}

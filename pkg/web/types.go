// Package web provides the HTTP handlers and request types of the workflow API.
package web

import "github.com/dukex/enviroflow/pkg/models"

// WorkflowRequest is the body of create and update calls.
type WorkflowRequest struct {
	Name        string         `json:"name"                   validate:"required,max=200"`
	Description string         `json:"description"            validate:"max=2000"`
	Nodes       []*models.Node `json:"nodes"                  validate:"max=100"`
	Edges       []*models.Edge `json:"edges"                  validate:"max=200"`
	IsActive    bool           `json:"is_active"`
	RoomID      *string        `json:"room_id,omitempty"`
	GrowthStage string         `json:"growth_stage,omitempty" validate:"max=50"`
	Owner       string         `json:"owner,omitempty"`
}

// Workflow converts the request into a workflow model.
func (r *WorkflowRequest) Workflow() *models.Workflow {
	return &models.Workflow{
		Name:        r.Name,
		Description: r.Description,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
		IsActive:    r.IsActive,
		RoomID:      r.RoomID,
		GrowthStage: r.GrowthStage,
		Owner:       r.Owner,
	}
}

// ValidateGraphRequest carries an unsaved graph from the builder.
type ValidateGraphRequest struct {
	Nodes []*models.Node `json:"nodes" validate:"max=100"`
	Edges []*models.Edge `json:"edges" validate:"max=200"`
}

// WorkflowResponse wraps a saved workflow with the warnings found while saving it.
type WorkflowResponse struct {
	*models.Workflow

	Warnings []models.Issue `json:"warnings"`
}

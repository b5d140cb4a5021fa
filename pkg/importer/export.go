package importer

import (
	"encoding/json"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
)

// FormatVersion is stamped into every exported file.
const FormatVersion = "1.0"

// ExportedWorkflow is the on-disk workflow file. Node configs are typed, so credential keys
// from an earlier import never reach it.
type ExportedWorkflow struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	GrowthStage string         `json:"growth_stage,omitempty"`
	Nodes       []*models.Node `json:"nodes"`
	Edges       []*models.Edge `json:"edges"`
	ExportedAt  string         `json:"exportedAt"`
	Version     string         `json:"version"`
}

// Export builds the file representation of a workflow, stamped with now.
func Export(workflow *models.Workflow, now time.Time) *ExportedWorkflow {
	nodes := workflow.Nodes
	if nodes == nil {
		nodes = make([]*models.Node, 0)
	}

	edges := workflow.Edges
	if edges == nil {
		edges = make([]*models.Edge, 0)
	}

	return &ExportedWorkflow{
		Name:        workflow.Name,
		Description: workflow.Description,
		GrowthStage: workflow.GrowthStage,
		Nodes:       nodes,
		Edges:       edges,
		ExportedAt:  now.UTC().Format(time.RFC3339),
		Version:     FormatVersion,
	}
}

// MarshalExport renders a workflow as an indented export file.
func MarshalExport(workflow *models.Workflow, now time.Time) ([]byte, error) {
	return json.MarshalIndent(Export(workflow, now), "", "  ")
}

package models

import "time"

// WorkflowGraph is the unit of validation: an ordered set of nodes and the edges between them.
type WorkflowGraph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Workflow is a stored automation graph attached to a grow room.
type Workflow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"                   validate:"required,max=200"`
	Description string     `json:"description,omitempty"`
	Nodes       []*Node    `json:"nodes"`
	Edges       []*Edge    `json:"edges"`
	IsActive    bool       `json:"is_active"`
	RoomID      *string    `json:"room_id,omitempty"`
	GrowthStage string     `json:"growth_stage,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Graph returns the workflow's nodes and edges.
func (w *Workflow) Graph() WorkflowGraph {
	return WorkflowGraph{Nodes: w.Nodes, Edges: w.Edges}
}

// ControllerIDs returns the distinct controller ids referenced by the workflow's nodes, in node order.
func (w *Workflow) ControllerIDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)

	for _, node := range w.Nodes {
		target, ok := node.Data.Config.(DeviceTarget)

		var controllerID string

		switch {
		case ok:
			controllerID, _ = target.Target()
		default:
			if sensor, isSensor := node.SensorConfig(); isSensor {
				controllerID = sensor.ControllerID
			}
		}

		if controllerID == "" || seen[controllerID] {
			continue
		}

		seen[controllerID] = true
		ids = append(ids, controllerID)
	}

	return ids
}

// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test action node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:       uuid.New().String(),
		Kind:     models.NodeKindAction,
		Position: models.Position{X: 100, Y: 200},
		Data: models.NodeData{
			Label: "Test Node",
			Config: &models.ActionConfig{
				ControllerID: "controller-1",
				Port:         models.PortPtr(1),
				Action:       "on",
			},
		},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node id.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithTriggerNode configures the node as a schedule trigger.
func WithTriggerNode() func(*models.Node) {
	return func(n *models.Node) {
		n.Kind = models.NodeKindTrigger
		n.Data.Config = &models.TriggerConfig{TriggerType: "schedule", Schedule: "0 6 * * *"}
	}
}

// WithSensorNode configures the node as a sensor reading on a controller.
func WithSensorNode(controllerID, sensorType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Kind = models.NodeKindSensor
		n.Data.Config = &models.SensorConfig{ControllerID: controllerID, SensorType: sensorType}
	}
}

// WithDeviceTarget points an action node at a controller port.
func WithDeviceTarget(controllerID string, port int) func(*models.Node) {
	return func(n *models.Node) {
		n.Kind = models.NodeKindAction
		n.Data.Config = &models.ActionConfig{ControllerID: controllerID, Port: models.PortPtr(port), Action: "on"}
	}
}

// WithConfig sets the node configuration and kind.
func WithConfig(config models.NodeConfig) func(*models.Node) {
	return func(n *models.Node) {
		n.Kind = config.Kind()
		n.Data.Config = config
	}
}

// WithLabel sets the node label.
func WithLabel(label string) func(*models.Node) {
	return func(n *models.Node) {
		n.Data.Label = label
	}
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// CreateTestEdge connects two nodes.
func CreateTestEdge(source, target string) *models.Edge {
	return &models.Edge{
		ID:     uuid.New().String(),
		Source: source,
		Target: target,
	}
}

// CreateTestWorkflow creates a structurally valid workflow: one trigger wired to one action.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	trigger := CreateTestNode(WithID("trigger-1"), WithTriggerNode(), WithLabel("Every morning"))
	action := CreateTestNode(WithID("action-1"), WithLabel("Lights on"))

	workflow := &models.Workflow{
		Name:        "Test Workflow",
		Description: "Test workflow description",
		Nodes:       []*models.Node{trigger, action},
		Edges:       []*models.Edge{{ID: "edge-1", Source: trigger.ID, Target: action.ID}},
		IsActive:    true,
		GrowthStage: "veg",
		Owner:       "grower-1",
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithWorkflowName sets the workflow name.
func WithWorkflowName(name string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Name = name
	}
}

// WithRoom attaches the workflow to a room.
func WithRoom(roomID string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.RoomID = &roomID
	}
}

// WithActive sets whether the workflow is active.
func WithActive(active bool) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.IsActive = active
	}
}

// WithOwner sets the workflow owner.
func WithOwner(owner string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Owner = owner
	}
}

// WithGraph replaces the workflow's nodes and edges.
func WithGraph(nodes []*models.Node, edges []*models.Edge) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Nodes = nodes
		w.Edges = edges
	}
}

// OnlineController builds a controller snapshot entry with online devices on the given ports.
func OnlineController(controllerID string, ports ...int) *models.ControllerCapabilities {
	devices := make([]models.DeviceCapability, 0, len(ports))
	for _, port := range ports {
		devices = append(devices, models.DeviceCapability{Port: port, IsOnline: true})
	}

	return &models.ControllerCapabilities{
		ControllerID: controllerID,
		Status:       models.ControllerStatusOnline,
		Sensors:      []models.SensorCapability{{Type: "temperature", Port: 1}},
		Devices:      devices,
	}
}

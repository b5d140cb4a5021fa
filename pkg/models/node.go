// Package models defines the core domain models for EnviroFlow automation graphs
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NodeKind is the discriminator identifying a workflow step's role.
type NodeKind string

const (
	NodeKindTrigger        NodeKind = "trigger"
	NodeKindSensor         NodeKind = "sensor"
	NodeKindCondition      NodeKind = "condition"
	NodeKindAction         NodeKind = "action"
	NodeKindDelay          NodeKind = "delay"
	NodeKindVariable       NodeKind = "variable"
	NodeKindDebounce       NodeKind = "debounce"
	NodeKindDimmer         NodeKind = "dimmer"
	NodeKindNotification   NodeKind = "notification"
	NodeKindMode           NodeKind = "mode"
	NodeKindVerifiedAction NodeKind = "verified_action"
	NodeKindPortCondition  NodeKind = "port_condition"
)

// ErrUnknownNodeKind is returned when a node type is outside the closed kind set.
var ErrUnknownNodeKind = errors.New("unknown node kind")

// NodeKinds lists every supported kind in declaration order.
func NodeKinds() []NodeKind {
	return []NodeKind{
		NodeKindTrigger,
		NodeKindSensor,
		NodeKindCondition,
		NodeKindAction,
		NodeKindDelay,
		NodeKindVariable,
		NodeKindDebounce,
		NodeKindDimmer,
		NodeKindNotification,
		NodeKindMode,
		NodeKindVerifiedAction,
		NodeKindPortCondition,
	}
}

// ParseNodeKind converts a raw type string into a NodeKind, rejecting unknown values.
func ParseNodeKind(raw string) (NodeKind, error) {
	for _, kind := range NodeKinds() {
		if string(kind) == raw {
			return kind, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownNodeKind, raw)
}

// IsEffect reports whether nodes of this kind produce an external effect.
func (k NodeKind) IsEffect() bool {
	return k == NodeKindAction || k == NodeKindDimmer || k == NodeKindNotification
}

// Position is the builder canvas coordinate. Layout only.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the user-facing label and the kind-specific configuration.
type NodeData struct {
	Label  string     `json:"label"`
	Config NodeConfig `json:"config"`
}

// Node represents one step in an automation graph.
type Node struct {
	ID       string   `json:"id"       validate:"required"`
	Kind     NodeKind `json:"type"     validate:"required"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Label returns the node label, falling back to its id.
func (n *Node) Label() string {
	if strings.TrimSpace(n.Data.Label) != "" {
		return n.Data.Label
	}

	return n.ID
}

type rawNodeData struct {
	Label  string          `json:"label"`
	Config json.RawMessage `json:"config,omitempty"`
}

type rawNode struct {
	ID       string      `json:"id"`
	Kind     string      `json:"type"`
	Position Position    `json:"position"`
	Data     rawNodeData `json:"data"`
}

// UnmarshalJSON decodes a node, picking the config variant from the node type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw rawNode

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	kind, err := ParseNodeKind(raw.Kind)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	config, err := DecodeConfig(kind, raw.Data.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	n.ID = raw.ID
	n.Kind = kind
	n.Position = raw.Position
	n.Data = NodeData{Label: raw.Data.Label, Config: config}

	return nil
}

// MarshalJSON encodes a node in the builder shape.
func (n Node) MarshalJSON() ([]byte, error) {
	config := n.Data.Config
	if config == nil {
		config = emptyConfig(n.Kind)
	}

	return json.Marshal(struct {
		ID       string   `json:"id"`
		Kind     NodeKind `json:"type"`
		Position Position `json:"position"`
		Data     struct {
			Label  string     `json:"label"`
			Config NodeConfig `json:"config"`
		} `json:"data"`
	}{
		ID:       n.ID,
		Kind:     n.Kind,
		Position: n.Position,
		Data: struct {
			Label  string     `json:"label"`
			Config NodeConfig `json:"config"`
		}{Label: n.Data.Label, Config: config},
	})
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id"                     validate:"required"`
	Source       string `json:"source"                 validate:"required"`
	Target       string `json:"target"                 validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// PortNumber is a controller port. Builders emit it either as a number or a numeric string.
type PortNumber int

// UnmarshalJSON accepts 3, 3.0 and "3".
func (p *PortNumber) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}

	text = strings.Trim(text, `"`)

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid port %s: %w", string(data), err)
	}

	if value != float64(int(value)) {
		return fmt.Errorf("invalid port %s: not an integer", string(data))
	}

	*p = PortNumber(value)

	return nil
}

// PortPtr returns a pointer to a port number.
func PortPtr(port int) *PortNumber {
	p := PortNumber(port)

	return &p
}

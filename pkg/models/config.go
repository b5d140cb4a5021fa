package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeConfig is the kind-specific configuration of a node. Each node kind has exactly one variant.
type NodeConfig interface {
	Kind() NodeKind
}

// DeviceTarget is implemented by configs that address a controller port.
type DeviceTarget interface {
	Target() (controllerID string, port *PortNumber)
}

// TriggerConfig starts a workflow.
type TriggerConfig struct {
	TriggerType string `json:"triggerType,omitempty"` // schedule, sensor_threshold, manual
	Schedule    string `json:"schedule,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

func (TriggerConfig) Kind() NodeKind { return NodeKindTrigger }

// SensorConfig reads a sensor on a controller and compares it against a threshold.
type SensorConfig struct {
	ControllerID   string      `json:"controllerId,omitempty"`
	ControllerName string      `json:"controllerName,omitempty"`
	SensorType     string      `json:"sensorType,omitempty"`
	Port           *PortNumber `json:"port,omitempty"`
	Operator       string      `json:"operator,omitempty"`
	Threshold      *float64    `json:"threshold,omitempty"`
	ResetThreshold *float64    `json:"resetThreshold,omitempty"`
}

func (SensorConfig) Kind() NodeKind { return NodeKindSensor }

// ConditionConfig routes to the true or false handle.
type ConditionConfig struct {
	Logic    string   `json:"logic,omitempty"` // and, or
	Operator string   `json:"operator,omitempty"`
	Value    *float64 `json:"value,omitempty"`
}

func (ConditionConfig) Kind() NodeKind { return NodeKindCondition }

// ActionConfig switches or levels a device on a controller port.
type ActionConfig struct {
	ControllerID   string      `json:"controllerId,omitempty"`
	ControllerName string      `json:"controllerName,omitempty"`
	Port           *PortNumber `json:"port,omitempty"`
	PortName       string      `json:"portName,omitempty"`
	Action         string      `json:"action,omitempty"` // on, off, set_level
	Level          *int        `json:"level,omitempty"`
}

func (ActionConfig) Kind() NodeKind { return NodeKindAction }

func (c ActionConfig) Target() (string, *PortNumber) { return c.ControllerID, c.Port }

// DelayConfig pauses the branch.
type DelayConfig struct {
	Duration float64 `json:"duration,omitempty"`
	Unit     string  `json:"unit,omitempty"` // seconds, minutes, hours
}

func (DelayConfig) Kind() NodeKind { return NodeKindDelay }

// VariableConfig reads or writes a workflow variable.
type VariableConfig struct {
	Name      string `json:"name,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Operation string `json:"operation,omitempty"` // set, increment, decrement
	Value     any    `json:"value,omitempty"`
}

func (VariableConfig) Kind() NodeKind { return NodeKindVariable }

// DebounceConfig suppresses repeated firing.
type DebounceConfig struct {
	CooldownSeconds int  `json:"cooldownSeconds,omitempty"`
	ExecuteOnLead   bool `json:"executeOnLead,omitempty"`
}

func (DebounceConfig) Kind() NodeKind { return NodeKindDebounce }

// DimmerConfig ramps a light between sunrise and sunset levels.
type DimmerConfig struct {
	ControllerID   string      `json:"controllerId,omitempty"`
	ControllerName string      `json:"controllerName,omitempty"`
	Port           *PortNumber `json:"port,omitempty"`
	SunriseTime    string      `json:"sunriseTime,omitempty"`
	SunsetTime     string      `json:"sunsetTime,omitempty"`
	MinLevel       int         `json:"minLevel,omitempty"`
	MaxLevel       int         `json:"maxLevel,omitempty"`
	Curve          string      `json:"curve,omitempty"`
}

func (DimmerConfig) Kind() NodeKind { return NodeKindDimmer }

func (c DimmerConfig) Target() (string, *PortNumber) { return c.ControllerID, c.Port }

// NotificationConfig sends a message to the room owner.
type NotificationConfig struct {
	Message  string   `json:"message,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

func (NotificationConfig) Kind() NodeKind { return NodeKindNotification }

// ModeConfig switches a controller port into a controller-native mode.
type ModeConfig struct {
	ControllerID   string      `json:"controllerId,omitempty"`
	ControllerName string      `json:"controllerName,omitempty"`
	Port           *PortNumber `json:"port,omitempty"`
	Mode           string      `json:"mode,omitempty"` // off, on, auto, timer, cycle, schedule, vpd
}

func (ModeConfig) Kind() NodeKind { return NodeKindMode }

func (c ModeConfig) Target() (string, *PortNumber) { return c.ControllerID, c.Port }

// VerifiedActionConfig is an action that re-reads the port to confirm the change.
type VerifiedActionConfig struct {
	ControllerID         string      `json:"controllerId,omitempty"`
	ControllerName       string      `json:"controllerName,omitempty"`
	Port                 *PortNumber `json:"port,omitempty"`
	Action               string      `json:"action,omitempty"`
	Level                *int        `json:"level,omitempty"`
	VerifyTimeoutSeconds int         `json:"verifyTimeoutSeconds,omitempty"`
	MaxRetries           int         `json:"maxRetries,omitempty"`
}

func (VerifiedActionConfig) Kind() NodeKind { return NodeKindVerifiedAction }

func (c VerifiedActionConfig) Target() (string, *PortNumber) { return c.ControllerID, c.Port }

// PortConditionConfig branches on the current state of a port.
type PortConditionConfig struct {
	ControllerID   string      `json:"controllerId,omitempty"`
	ControllerName string      `json:"controllerName,omitempty"`
	Port           *PortNumber `json:"port,omitempty"`
	Condition      string      `json:"condition,omitempty"` // is_on, is_off, level_above, level_below
	Threshold      *int        `json:"threshold,omitempty"`
}

func (PortConditionConfig) Kind() NodeKind { return NodeKindPortCondition }

func (c PortConditionConfig) Target() (string, *PortNumber) { return c.ControllerID, c.Port }

func emptyConfig(kind NodeKind) NodeConfig {
	switch kind {
	case NodeKindTrigger:
		return &TriggerConfig{}
	case NodeKindSensor:
		return &SensorConfig{}
	case NodeKindCondition:
		return &ConditionConfig{}
	case NodeKindAction:
		return &ActionConfig{}
	case NodeKindDelay:
		return &DelayConfig{}
	case NodeKindVariable:
		return &VariableConfig{}
	case NodeKindDebounce:
		return &DebounceConfig{}
	case NodeKindDimmer:
		return &DimmerConfig{}
	case NodeKindNotification:
		return &NotificationConfig{}
	case NodeKindMode:
		return &ModeConfig{}
	case NodeKindVerifiedAction:
		return &VerifiedActionConfig{}
	case NodeKindPortCondition:
		return &PortConditionConfig{}
	default:
		return nil
	}
}

// DecodeConfig decodes a raw config object into the variant for kind.
// Keys the variant does not know are dropped.
func DecodeConfig(kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	config := emptyConfig(kind)
	if config == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return config, nil
	}

	err := json.Unmarshal(trimmed, config)
	if err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", kind, err)
	}

	return config, nil
}

// SensorConfig returns the node's sensor configuration when it has one.
func (n *Node) SensorConfig() (*SensorConfig, bool) {
	switch config := n.Data.Config.(type) {
	case *SensorConfig:
		return config, config != nil
	case SensorConfig:
		return &config, true
	default:
		return nil, false
	}
}

// ActionConfig returns the node's action configuration when it has one.
func (n *Node) ActionConfig() (*ActionConfig, bool) {
	switch config := n.Data.Config.(type) {
	case *ActionConfig:
		return config, config != nil
	case ActionConfig:
		return &config, true
	default:
		return nil, false
	}
}

package models

// Severity separates blocking findings from informational ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueType is the closed set of validation finding kinds.
type IssueType string

const (
	IssueControllerNotFound    IssueType = "controller_not_found"
	IssueControllerOffline     IssueType = "controller_offline"
	IssueSensorNotAvailable    IssueType = "sensor_not_available"
	IssueDeviceNotAvailable    IssueType = "device_not_available"
	IssueMissingTrigger        IssueType = "missing_trigger"
	IssueMissingAction         IssueType = "missing_action"
	IssueDanglingEdge          IssueType = "dangling_edge"
	IssueCycleDetected         IssueType = "cycle_detected"
	IssueDuplicateDeviceTarget IssueType = "duplicate_device_target"
)

// Issue is one validation finding. Callers distinguish blocking findings by Severity, not Type:
// device_not_available is an error when the port is missing and a warning when the device is offline,
// and missing_trigger is an error when the graph has no trigger and a warning when it has several.
type Issue struct {
	NodeID         string    `json:"nodeId,omitempty"`
	NodeLabel      string    `json:"nodeLabel,omitempty"`
	EdgeID         string    `json:"edgeId,omitempty"`
	RelatedNodeIDs []string  `json:"relatedNodeIds,omitempty"`
	Severity       Severity  `json:"severity"`
	Type           IssueType `json:"type"`
	Message        string    `json:"message"`
}

// IsError reports whether the issue blocks.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError
}

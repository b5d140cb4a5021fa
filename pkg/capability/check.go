// Package capability cross-checks the hardware a graph references against a live capability snapshot.
package capability

import (
	"errors"
	"fmt"

	"github.com/dukex/enviroflow/pkg/models"
)

// ErrInvalidSnapshot is returned when a snapshot entry violates its own contract.
var ErrInvalidSnapshot = errors.New("invalid capability snapshot")

// CapabilityReport lists per-node hardware issues. CanExecute is false when any issue is an error.
type CapabilityReport struct {
	Issues     []models.Issue `json:"issues"`
	CanExecute bool           `json:"canExecute"`
}

// Errors returns the error-severity issues.
func (r CapabilityReport) Errors() []models.Issue {
	return filter(r.Issues, models.SeverityError)
}

// Warnings returns the warning-severity issues.
func (r CapabilityReport) Warnings() []models.Issue {
	return filter(r.Issues, models.SeverityWarning)
}

// CheckCapabilities inspects sensor and action nodes against the snapshot. It performs no I/O.
func CheckCapabilities(nodes []*models.Node, snapshot models.CapabilitySnapshot) (CapabilityReport, error) {
	for controllerID, caps := range snapshot {
		if caps != nil && !caps.Status.IsKnown() {
			return CapabilityReport{}, fmt.Errorf("%w: controller %s has status %q",
				ErrInvalidSnapshot, controllerID, caps.Status)
		}
	}

	checker := &checker{snapshot: snapshot, issues: make([]models.Issue, 0)}

	for _, node := range nodes {
		if node == nil {
			continue
		}

		switch node.Kind {
		case models.NodeKindSensor:
			checker.checkSensor(node)
		case models.NodeKindAction:
			checker.checkAction(node)
		}
	}

	report := CapabilityReport{Issues: checker.issues, CanExecute: true}

	for _, issue := range report.Issues {
		if issue.IsError() {
			report.CanExecute = false

			break
		}
	}

	return report, nil
}

type checker struct {
	snapshot models.CapabilitySnapshot
	issues   []models.Issue
}

func (c *checker) add(node *models.Node, severity models.Severity, issueType models.IssueType, message string) {
	c.issues = append(c.issues, models.Issue{
		NodeID:    node.ID,
		NodeLabel: node.Label(),
		Severity:  severity,
		Type:      issueType,
		Message:   message,
	})
}

// controller resolves the configured controller, recording not-found and offline issues.
// It returns nil when checks for the node cannot continue.
func (c *checker) controller(node *models.Node, controllerID, controllerName string) *models.ControllerCapabilities {
	if controllerID == "" {
		c.add(node, models.SeverityError, models.IssueControllerNotFound,
			fmt.Sprintf("%s: no controller selected", node.Label()))

		return nil
	}

	caps := c.snapshot[controllerID]
	if caps == nil {
		name := controllerName
		if name == "" {
			name = controllerID
		}

		c.add(node, models.SeverityError, models.IssueControllerNotFound,
			fmt.Sprintf("%s: controller %q was not found", node.Label(), name))

		return nil
	}

	if caps.Status == models.ControllerStatusOffline {
		c.add(node, models.SeverityWarning, models.IssueControllerOffline,
			fmt.Sprintf("%s: controller %q is offline", node.Label(), caps.DisplayName()))
	}

	return caps
}

func (c *checker) checkSensor(node *models.Node) {
	config, ok := node.SensorConfig()
	if !ok {
		config = &models.SensorConfig{}
	}

	caps := c.controller(node, config.ControllerID, config.ControllerName)
	if caps == nil || config.SensorType == "" {
		return
	}

	for _, sensor := range caps.Sensors {
		if sensor.Type != config.SensorType {
			continue
		}

		if config.Port == nil || sensor.Port == int(*config.Port) {
			return
		}
	}

	message := fmt.Sprintf("%s: %s sensor is not available on controller %q",
		node.Label(), config.SensorType, caps.DisplayName())
	if config.Port != nil {
		message = fmt.Sprintf("%s: %s sensor on port %d is not available on controller %q",
			node.Label(), config.SensorType, *config.Port, caps.DisplayName())
	}

	c.add(node, models.SeverityError, models.IssueSensorNotAvailable, message)
}

func (c *checker) checkAction(node *models.Node) {
	config, ok := node.ActionConfig()
	if !ok {
		config = &models.ActionConfig{}
	}

	caps := c.controller(node, config.ControllerID, config.ControllerName)
	if caps == nil || config.Port == nil {
		return
	}

	port := int(*config.Port)

	device := caps.Device(port)
	if device == nil {
		c.add(node, models.SeverityError, models.IssueDeviceNotAvailable,
			fmt.Sprintf("%s: no device on port %d of controller %q", node.Label(), port, caps.DisplayName()))

		return
	}

	if !device.IsOnline {
		c.add(node, models.SeverityWarning, models.IssueDeviceNotAvailable,
			fmt.Sprintf("%s: device on port %d of controller %q is offline", node.Label(), port, caps.DisplayName()))
	}
}

func filter(issues []models.Issue, severity models.Severity) []models.Issue {
	out := make([]models.Issue, 0, len(issues))

	for _, issue := range issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}

	return out
}

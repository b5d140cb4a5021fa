package models

import "time"

// ControllerStatus is the reachability of a controller at snapshot time.
type ControllerStatus string

const (
	ControllerStatusOnline  ControllerStatus = "online"
	ControllerStatusOffline ControllerStatus = "offline"
)

// IsKnown reports whether the status is one of the defined values.
func (s ControllerStatus) IsKnown() bool {
	return s == ControllerStatusOnline || s == ControllerStatusOffline
}

// SensorCapability is a sensor a controller currently reports.
type SensorCapability struct {
	Type string `json:"type"           yaml:"type"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// DeviceCapability is a device attached to a controller port.
type DeviceCapability struct {
	Port       int    `json:"port"                 yaml:"port"`
	IsOnline   bool   `json:"isOnline"             yaml:"is_online"`
	DeviceType string `json:"deviceType,omitempty" yaml:"device_type,omitempty"`
	Name       string `json:"name,omitempty"       yaml:"name,omitempty"`
}

// ControllerCapabilities is a point-in-time read of one controller.
type ControllerCapabilities struct {
	ControllerID string             `json:"controllerId"         yaml:"controller_id"`
	Name         string             `json:"name,omitempty"       yaml:"name,omitempty"`
	Status       ControllerStatus   `json:"status"               yaml:"status"`
	Sensors      []SensorCapability `json:"sensors"              yaml:"sensors"`
	Devices      []DeviceCapability `json:"devices"              yaml:"devices"`
	CapturedAt   time.Time          `json:"capturedAt,omitempty" yaml:"captured_at,omitempty"`
}

// CapabilitySnapshot maps controller id to its capabilities. Missing or nil entries mean unknown controllers.
type CapabilitySnapshot map[string]*ControllerCapabilities

// DisplayName returns the controller name, falling back to its id.
func (c *ControllerCapabilities) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}

	return c.ControllerID
}

// Device returns the device on port, or nil.
func (c *ControllerCapabilities) Device(port int) *DeviceCapability {
	for i := range c.Devices {
		if c.Devices[i].Port == port {
			return &c.Devices[i]
		}
	}

	return nil
}

// IsStale reports whether the entry was captured before now minus maxAge. Entries without a capture time are never stale.
func (c *ControllerCapabilities) IsStale(now time.Time, maxAge time.Duration) bool {
	if c.CapturedAt.IsZero() || maxAge <= 0 {
		return false
	}

	return now.Sub(c.CapturedAt) > maxAge
}

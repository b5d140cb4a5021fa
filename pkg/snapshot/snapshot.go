// Package snapshot supplies point-in-time controller capability snapshots to the services that cross-check workflows.
package snapshot

import (
	"context"
	"errors"

	"github.com/dukex/enviroflow/pkg/models"
)

// ErrUnsupportedSource is returned when a capabilities URL names no known provider.
var ErrUnsupportedSource = errors.New("unsupported capabilities source")

// Provider returns the current capabilities of the given controllers. Unknown controllers are
// simply absent from the result; callers treat absence as "controller not found".
type Provider interface {
	Snapshot(ctx context.Context, controllerIDs []string) (models.CapabilitySnapshot, error)
}

// Static serves a fixed snapshot.
type Static struct {
	controllers models.CapabilitySnapshot
}

// NewStatic creates a provider over a fixed set of controllers.
func NewStatic(controllers ...*models.ControllerCapabilities) *Static {
	snapshot := make(models.CapabilitySnapshot, len(controllers))
	for _, controller := range controllers {
		snapshot[controller.ControllerID] = controller
	}

	return &Static{controllers: snapshot}
}

func (s *Static) Snapshot(_ context.Context, controllerIDs []string) (models.CapabilitySnapshot, error) {
	return pick(s.controllers, controllerIDs), nil
}

// pick copies the requested entries out of all. An empty request returns everything.
func pick(all models.CapabilitySnapshot, controllerIDs []string) models.CapabilitySnapshot {
	if len(controllerIDs) == 0 {
		out := make(models.CapabilitySnapshot, len(all))
		for id, caps := range all {
			out[id] = caps
		}

		return out
	}

	out := make(models.CapabilitySnapshot, len(controllerIDs))

	for _, id := range controllerIDs {
		if caps, ok := all[id]; ok && caps != nil {
			out[id] = caps
		}
	}

	return out
}

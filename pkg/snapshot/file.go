package snapshot

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/enviroflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// fileDocument is the YAML layout of a capabilities file.
type fileDocument struct {
	Controllers []*models.ControllerCapabilities `yaml:"controllers"`
}

// File reads a YAML capabilities file on every call, so edits are picked up without a restart.
type File struct {
	path string
}

// NewFile creates a provider backed by the YAML file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Snapshot(ctx context.Context, controllerIDs []string) (models.CapabilitySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := LoadFile(f.path)
	if err != nil {
		return nil, err
	}

	return pick(all, controllerIDs), nil
}

// LoadFile parses a YAML capabilities file.
func LoadFile(path string) (models.CapabilitySnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capabilities file %s: %w", path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities file %s: %w", path, err)
	}

	snapshot := make(models.CapabilitySnapshot, len(doc.Controllers))

	for i, controller := range doc.Controllers {
		if controller == nil || controller.ControllerID == "" {
			return nil, fmt.Errorf("capabilities file %s: controller %d has no controller_id", path, i)
		}

		snapshot[controller.ControllerID] = controller
	}

	return snapshot, nil
}

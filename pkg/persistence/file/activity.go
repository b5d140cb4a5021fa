package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/google/uuid"
)

// ActivityLogRepository keeps one JSON array of entries per workflow.
type ActivityLogRepository struct {
	root string
	mu   sync.Mutex
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(root string) *ActivityLogRepository {
	return &ActivityLogRepository{root: root}
}

func (ar *ActivityLogRepository) filePath(workflowID string) string {
	return filepath.Clean(path.Join(ar.root, "activity", filepath.Base(workflowID)+".json"))
}

// Record appends an entry, assigning an id and timestamp when missing.
func (ar *ActivityLogRepository) Record(_ context.Context, entry *models.ActivityLog) error {
	if entry.WorkflowID == "" {
		return fmt.Errorf("activity log entry has no workflow id")
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate activity log ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entries, err := ar.read(entry.WorkflowID)
	if err != nil {
		return err
	}

	entries = append(entries, entry)

	err = os.MkdirAll(path.Join(ar.root, "activity"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create activity directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal activity log for workflow %s: %w", entry.WorkflowID, err)
	}

	return os.WriteFile(ar.filePath(entry.WorkflowID), data, 0600)
}

// ListByWorkflow returns up to limit entries, newest first. A non-positive limit returns all entries.
func (ar *ActivityLogRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ActivityLog, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	entries, err := ar.read(workflowID)
	if err != nil {
		return nil, err
	}

	// Entries are stored in append order; reversing first keeps same-instant entries newest first.
	slices.Reverse(entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (ar *ActivityLogRepository) read(workflowID string) ([]*models.ActivityLog, error) {
	body, err := os.ReadFile(ar.filePath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.ActivityLog, 0), nil
		}

		return nil, fmt.Errorf("failed to read activity log for workflow %s: %w", workflowID, err)
	}

	var entries []*models.ActivityLog

	err = json.Unmarshal(body, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity log for workflow %s: %w", workflowID, err)
	}

	return entries, nil
}

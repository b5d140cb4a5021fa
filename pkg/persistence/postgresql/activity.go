package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/google/uuid"
)

// ActivityLogRepository handles activity log database operations.
type ActivityLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *sql.DB, logger *slog.Logger) *ActivityLogRepository {
	return &ActivityLogRepository{db: db, logger: logger}
}

// Record inserts an entry, assigning an id and timestamp when missing.
func (r *ActivityLogRepository) Record(ctx context.Context, entry *models.ActivityLog) error {
	if entry.WorkflowID == "" {
		return fmt.Errorf("activity log entry has no workflow id")
	}

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

	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal activity details: %w", err)
	}

	query := `
		INSERT INTO activity_logs (id, workflow_id, action, result, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.WorkflowID, entry.Action, entry.Result, detailsJSON, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record activity for workflow %s: %w", entry.WorkflowID, err)
	}

	return nil
}

// ListByWorkflow returns up to limit entries, newest first. A non-positive limit returns all entries.
func (r *ActivityLogRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ActivityLog, error) {
	if _, err := uuid.Parse(workflowID); err != nil {
		return make([]*models.ActivityLog, 0), nil
	}

	query := `
		SELECT id, workflow_id, action, result, details, created_at
		FROM activity_logs
		WHERE workflow_id = $1
		ORDER BY created_at DESC
	`
	args := []any{workflowID}

	if limit > 0 {
		query += " LIMIT $2"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ActivityLog, 0)

	for rows.Next() {
		var (
			entry       models.ActivityLog
			detailsJSON []byte
		)

		err := rows.Scan(&entry.ID, &entry.WorkflowID, &entry.Action, &entry.Result, &detailsJSON, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity logs: %w", err)
	}

	return entries, nil
}

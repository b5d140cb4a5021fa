package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.False(t, persistence.IsInvalidSortField(workflowErr))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Delete", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})

	t.Run("wrapped sort errors are detected", func(t *testing.T) {
		assert.True(t, persistence.IsInvalidSortField(fmt.Errorf("list: %w", persistence.ErrInvalidSortField)))
		assert.True(t, persistence.IsInvalidSortOrder(fmt.Errorf("list: %w", persistence.ErrInvalidSortOrder)))
	})
}

func TestListWorkflowsOptions_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    persistence.ListWorkflowsOptions
		want    persistence.ListWorkflowsOptions
		wantErr error
	}{
		{
			name: "defaults",
			opts: persistence.ListWorkflowsOptions{},
			want: persistence.ListWorkflowsOptions{SortBy: "created_at", SortOrder: "desc", Limit: 20},
		},
		{
			name: "limit above maximum falls back to default",
			opts: persistence.ListWorkflowsOptions{Limit: 500, Offset: -3, SortBy: "name", SortOrder: "asc"},
			want: persistence.ListWorkflowsOptions{Limit: 20, SortBy: "name", SortOrder: "asc"},
		},
		{
			name:    "sql injection attempt in sort field",
			opts:    persistence.ListWorkflowsOptions{SortBy: "name; DROP TABLE workflows; --"},
			wantErr: persistence.ErrInvalidSortField,
		},
		{
			name:    "unknown sort order",
			opts:    persistence.ListWorkflowsOptions{SortOrder: "sideways"},
			wantErr: persistence.ErrInvalidSortOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts

			err := opts.Normalize()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}

func TestListWorkflowsOptions_Matches(t *testing.T) {
	t.Parallel()

	room := "room-1"
	other := "room-2"
	active := true

	workflow := &models.Workflow{Owner: "grower", RoomID: &room, GrowthStage: "veg", IsActive: true}

	assert.True(t, (&persistence.ListWorkflowsOptions{}).Matches(workflow))
	assert.True(t, (&persistence.ListWorkflowsOptions{OwnerID: "grower", RoomID: &room, GrowthStage: "veg", IsActive: &active}).Matches(workflow))
	assert.False(t, (&persistence.ListWorkflowsOptions{OwnerID: "someone"}).Matches(workflow))
	assert.False(t, (&persistence.ListWorkflowsOptions{RoomID: &other}).Matches(workflow))
	assert.False(t, (&persistence.ListWorkflowsOptions{GrowthStage: "flower"}).Matches(workflow))
	assert.False(t, (&persistence.ListWorkflowsOptions{RoomID: &room}).Matches(&models.Workflow{}))
}

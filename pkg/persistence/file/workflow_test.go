package file

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWorkflows(t *testing.T, repo *WorkflowRepository) {
	t.Helper()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fixtures := []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("Bravo"), testutil.WithRoom("room-1")),
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("Alpha"), testutil.WithRoom("room-2"), testutil.WithActive(false)),
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("Charlie"), testutil.WithRoom("room-1"), testutil.WithOwner("grower-2")),
	}

	for i, workflow := range fixtures {
		workflow.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Save(ctx, workflow))
	}
}

// TestWorkflowRepository_ListWorkflows_InvalidSortField tests that invalid sort field returns typed error.
func TestWorkflowRepository_ListWorkflows_InvalidSortField(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	tests := []struct {
		name    string
		sortBy  string
		wantErr error
	}{
		{
			name:    "invalid sort field should return ErrInvalidSortField",
			sortBy:  "invalid_field",
			wantErr: persistence.ErrInvalidSortField,
		},
		{
			name:    "sql injection attempt should return ErrInvalidSortField",
			sortBy:  "name; DROP TABLE workflows; --",
			wantErr: persistence.ErrInvalidSortField,
		},
		{
			name:    "valid sort field name should not return error",
			sortBy:  "name",
			wantErr: nil,
		},
		{
			name:    "valid sort field updated_at should not return error",
			sortBy:  "updated_at",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := persistence.ListWorkflowsOptions{
				SortBy:    tt.sortBy,
				SortOrder: "asc",
				Limit:     10,
			}

			result, err := repo.ListWorkflows(context.Background(), opts)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, persistence.IsInvalidSortField(err))

				return
			}

			require.NoError(t, err)
			assert.Empty(t, result.Workflows)
		})
	}
}

func TestWorkflowRepository_ListWorkflows_FiltersSortsAndPages(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	seedWorkflows(t, repo)

	ctx := context.Background()

	result, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, names(result.Workflows))

	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie", "Alpha", "Bravo"}, names(result.Workflows))

	room := "room-1"
	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{RoomID: &room, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bravo", "Charlie"}, names(result.Workflows))

	active := false
	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, names(result.Workflows))

	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Bravo"}, names(result.Workflows))
	assert.True(t, result.HasNextPage)

	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie"}, names(result.Workflows))
	assert.False(t, result.HasNextPage)

	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Workflows)
	assert.Equal(t, int64(3), result.TotalCount)
}

func TestWorkflowRepository_SaveAssignsIDAndTimestamps(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))

	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	createdAt := workflow.CreatedAt
	workflow.Name = "Renamed"
	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.True(t, createdAt.Equal(loaded.CreatedAt))
}

func TestWorkflowRepository_GetByIDMissing(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	for _, id := range []string{"missing", "../etc/passwd", ""} {
		workflow, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, workflow)
	}
}

func TestWorkflowRepository_Names(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	seedWorkflows(t, repo)

	all, err := repo.Names(context.Background(), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alpha", "Bravo", "Charlie"}, all)

	owned, err := repo.Names(context.Background(), "grower-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie"}, owned)
}

func TestWorkflowRepository_Delete(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))

	require.NoError(t, repo.Delete(ctx, workflow.ID))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting twice is not an error
	assert.NoError(t, repo.Delete(ctx, workflow.ID))
}

func names(workflows []*models.Workflow) []string {
	out := make([]string, 0, len(workflows))
	for _, workflow := range workflows {
		out = append(out, workflow.Name)
	}

	return out
}

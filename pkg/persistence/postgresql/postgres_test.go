package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/persistence/postgresql"
	"github.com/dukex/enviroflow/pkg/testutil"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"activity_logs", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("enviroflow_test"),
			postgres.WithUsername("enviroflow"),
			postgres.WithPassword("enviroflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	for _, table := range []string{"workflows", "activity_logs"} {
		var exists bool

		err = db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := testutil.CreateTestWorkflow(testutil.WithRoom("room-1"))
	require.NoError(t, repo.Save(ctx, workflow))
	require.NotEmpty(t, workflow.ID)

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, "room-1", *loaded.RoomID)
	assert.True(t, loaded.IsActive)
	require.Len(t, loaded.Nodes, 2)
	require.Len(t, loaded.Edges, 1)

	config, ok := loaded.Nodes[1].ActionConfig()
	require.True(t, ok)
	assert.Equal(t, models.PortNumber(1), *config.Port)

	loaded.Name = "Renamed"
	loaded.IsActive = false
	require.NoError(t, repo.Save(ctx, loaded))

	reloaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reloaded.Name)
	assert.False(t, reloaded.IsActive)
}

func TestWorkflowRepository_GetByIDUnknown(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		workflow, err := p.WorkflowRepository().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, workflow)
	}
}

func TestWorkflowRepository_ListWorkflows(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Bravo", "Alpha", "Charlie"} {
		workflow := testutil.CreateTestWorkflow(testutil.WithWorkflowName(name), testutil.WithActive(i != 1))
		workflow.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Save(ctx, workflow))
	}

	result, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.True(t, result.HasNextPage)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "Alpha", result.Workflows[0].Name)
	assert.Equal(t, "Bravo", result.Workflows[1].Name)

	active := true
	result, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{IsActive: &active})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "Charlie", result.Workflows[0].Name)

	_, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name; DROP TABLE workflows"})
	assert.ErrorIs(t, err, persistence.ErrInvalidSortField)
}

func TestWorkflowRepository_NamesAndDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	first := testutil.CreateTestWorkflow(testutil.WithWorkflowName("Veg lights"))
	second := testutil.CreateTestWorkflow(testutil.WithWorkflowName("Flower lights"), testutil.WithOwner("grower-2"))

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	names, err := repo.Names(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Flower lights", "Veg lights"}, names)

	names, err = repo.Names(ctx, "grower-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Flower lights"}, names)

	require.NoError(t, repo.Delete(ctx, first.ID))

	deleted, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestActivityLogRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ActivityLogRepository()

	workflowID := uuid.NewString()
	base := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	for i, action := range []models.ActivityAction{models.ActivityWorkflowCreated, models.ActivityReadinessChecked} {
		require.NoError(t, repo.Record(ctx, &models.ActivityLog{
			WorkflowID: workflowID,
			Action:     action,
			Result:     models.ActivityResultSuccess,
			Details:    map[string]any{"step": float64(i)},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := repo.ListByWorkflow(ctx, workflowID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActivityReadinessChecked, entries[0].Action)
	assert.Equal(t, float64(1), entries[0].Details["step"])

	limited, err := repo.ListByWorkflow(ctx, workflowID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.Error(t, repo.Record(ctx, &models.ActivityLog{
		WorkflowID: workflowID,
		Action:     models.ActivityWorkflowCreated,
		Result:     "exploded",
	}))
}

package services

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/enviroflow/pkg/events"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/otelhelper"
	"github.com/dukex/enviroflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflow(t *testing.T) {
	persistence := newTestPersistence(t)
	service := NewWorkflow(testLogger(), persistence, nil, otelhelper.NoopTracer())

	assert.NotNil(t, service)
	assert.Equal(t, persistence, service.persistence)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	message, healthy := service.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.Equal(t, "Persistence layer is healthy", message)
}

func TestWorkflow_Create(t *testing.T) {
	service, persistence, bus := newWorkflowService(t)

	workflow := testutil.CreateTestWorkflow()
	workflow.ID = "client-chosen-id"

	created, err := service.Create(t.Context(), workflow)
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "client-chosen-id", created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	stored, err := persistence.WorkflowRepository().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Test Workflow", stored.Name)

	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.MatchedBy(func(event *events.WorkflowSaved) bool {
		return event.Created && event.WarningCount == 0
	}))

	entries, err := persistence.ActivityLogRepository().ListByWorkflow(t.Context(), created.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityWorkflowCreated, entries[0].Action)
	assert.Equal(t, models.ActivityResultSuccess, entries[0].Result)
}

func TestWorkflow_CreateWithWarnings(t *testing.T) {
	service, persistence, bus := newWorkflowService(t)

	trigger := testutil.CreateTestNode(testutil.WithID("t1"), testutil.WithTriggerNode())
	first := testutil.CreateTestNode(testutil.WithID("a1"), testutil.WithLabel("Fan on"))
	second := testutil.CreateTestNode(testutil.WithID("a2"), testutil.WithLabel("Fan off"))

	workflow := testutil.CreateTestWorkflow(testutil.WithGraph(
		[]*models.Node{trigger, first, second},
		[]*models.Edge{testutil.CreateTestEdge("t1", "a1"), testutil.CreateTestEdge("t1", "a2")},
	))

	created, err := service.Create(t.Context(), workflow)
	require.NoError(t, err)

	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.MatchedBy(func(event *events.WorkflowSaved) bool {
		return event.WarningCount == 1
	}))

	entries, err := persistence.ActivityLogRepository().ListByWorkflow(t.Context(), created.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityResultWarning, entries[0].Result)
	assert.Equal(t, []any{"duplicate_device_target"}, entries[0].Details["warnings"])
}

func TestWorkflow_CreateRejectsInvalidGraph(t *testing.T) {
	service, persistence, bus := newWorkflowService(t)

	workflow := testutil.CreateTestWorkflow(testutil.WithGraph(
		[]*models.Node{testutil.CreateTestNode(testutil.WithID("a1"))},
		[]*models.Edge{testutil.CreateTestEdge("a1", "ghost")},
	))

	created, err := service.Create(t.Context(), workflow)
	require.Error(t, err)
	assert.Nil(t, created)

	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrGraphInvalid)

	graphErr, ok := AsGraphValidationError(err)
	require.True(t, ok)
	require.Len(t, graphErr.Errors, 2)
	assert.Equal(t, models.IssueMissingTrigger, graphErr.Errors[0].Type)
	assert.Equal(t, models.IssueDanglingEdge, graphErr.Errors[1].Type)
	assert.Contains(t, err.Error(), "(and 1 more)")

	all, err := persistence.WorkflowRepository().GetAll(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflow_CreateRequestErrors(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	_, err := service.Create(t.Context(), nil)
	assert.ErrorIs(t, err, ErrWorkflowNil)

	_, err = service.Create(t.Context(), testutil.CreateTestWorkflow(testutil.WithWorkflowName("")))
	assert.ErrorIs(t, err, ErrWorkflowNameRequired)
	assert.True(t, IsValidationError(err))

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	_, err = service.Create(t.Context(), testutil.CreateTestWorkflow(testutil.WithWorkflowName(string(long))))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "INVALID_WORKFLOW", serviceErr.Code)
}

func TestWorkflow_CapabilityProblemsDoNotBlockSave(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	workflow := testutil.CreateTestWorkflow()
	workflow.Nodes[1] = testutil.CreateTestNode(testutil.WithID("action-1"), testutil.WithDeviceTarget("unplugged-controller", 9))

	_, err := service.Create(t.Context(), workflow)
	assert.NoError(t, err)
}

func TestWorkflow_FetchByID(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	created, err := service.Create(t.Context(), testutil.CreateTestWorkflow())
	require.NoError(t, err)

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, fetched.Name)
	require.Len(t, fetched.Nodes, 2)

	_, err = service.FetchByID(t.Context(), "missing")
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflow_Update(t *testing.T) {
	service, _, bus := newWorkflowService(t)

	created, err := service.Create(t.Context(), testutil.CreateTestWorkflow(testutil.WithOwner("grower-9")))
	require.NoError(t, err)

	createdAt := created.CreatedAt

	time.Sleep(5 * time.Millisecond)

	replacement := testutil.CreateTestWorkflow(testutil.WithWorkflowName("Renamed"), testutil.WithOwner(""))

	updated, err := service.Update(t.Context(), created.ID, replacement)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "grower-9", updated.Owner)
	assert.True(t, createdAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(createdAt))

	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.MatchedBy(func(event *events.WorkflowSaved) bool {
		return !event.Created && event.Name == "Renamed"
	}))

	_, err = service.Update(t.Context(), "missing", testutil.CreateTestWorkflow())
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflow_UpdateRejectsInvalidGraph(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	created, err := service.Create(t.Context(), testutil.CreateTestWorkflow())
	require.NoError(t, err)

	cyclic := testutil.CreateTestWorkflow()
	cyclic.Edges = append(cyclic.Edges, testutil.CreateTestEdge("action-1", "trigger-1"))

	_, err = service.Update(t.Context(), created.ID, cyclic)

	graphErr, ok := AsGraphValidationError(err)
	require.True(t, ok)
	require.Len(t, graphErr.Errors, 1)
	assert.Equal(t, models.IssueCycleDetected, graphErr.Errors[0].Type)

	stored, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Edges, 1)
}

func TestWorkflow_Delete(t *testing.T) {
	service, persistence, bus := newWorkflowService(t)

	created, err := service.Create(t.Context(), testutil.CreateTestWorkflow())
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), created.ID))

	_, err = service.FetchByID(t.Context(), created.ID)
	assert.True(t, IsNotFoundError(err))

	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.AnythingOfType("*events.WorkflowDeleted"))

	entries, err := persistence.ActivityLogRepository().ListByWorkflow(t.Context(), created.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActivityWorkflowDeleted, entries[0].Action)

	assert.True(t, IsNotFoundError(service.Delete(t.Context(), created.ID)))
}

func TestWorkflow_ListWorkflows(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	for _, workflow := range []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("Tent A lights"), testutil.WithRoom("tent-a")),
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("Tent A fans"), testutil.WithRoom("tent-a"), testutil.WithActive(false)),
		testutil.CreateTestWorkflow(testutil.WithWorkflowName("Tent B lights"), testutil.WithRoom("tent-b")),
	} {
		_, err := service.Create(t.Context(), workflow)
		require.NoError(t, err)
	}

	room := "tent-a"

	response, err := service.ListWorkflows(t.Context(), ListWorkflowsRequest{RoomID: &room, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), response.TotalCount)
	require.Len(t, response.Workflows, 2)
	assert.Equal(t, "Tent A fans", response.Workflows[0].Name)

	active := true

	response, err = service.ListWorkflows(t.Context(), ListWorkflowsRequest{IsActive: &active, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), response.TotalCount)
	assert.Len(t, response.Workflows, 1)
	assert.True(t, response.HasNextPage)
}

func TestWorkflow_ListWorkflowsValidation(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	tests := []struct {
		name     string
		request  ListWorkflowsRequest
		expected error
	}{
		{name: "sort field", request: ListWorkflowsRequest{SortBy: "owner"}, expected: ErrInvalidSortField},
		{name: "sort order", request: ListWorkflowsRequest{SortOrder: "sideways"}, expected: ErrInvalidSortOrder},
		{name: "blank owner", request: ListWorkflowsRequest{OwnerID: "   "}, expected: ErrEmptyOwnerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ListWorkflows(t.Context(), tt.request)
			assert.ErrorIs(t, err, tt.expected)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestWorkflow_ValidateGraph(t *testing.T) {
	service, persistence, _ := newWorkflowService(t)

	result := service.ValidateGraph(t.Context(), models.WorkflowGraph{})
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)

	all, err := persistence.WorkflowRepository().GetAll(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWorkflow_Activity(t *testing.T) {
	service, _, _ := newWorkflowService(t)

	created, err := service.Create(t.Context(), testutil.CreateTestWorkflow())
	require.NoError(t, err)

	_, err = service.Update(t.Context(), created.ID, testutil.CreateTestWorkflow(testutil.WithWorkflowName("v2")))
	require.NoError(t, err)

	entries, err := service.Activity(t.Context(), created.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActivityWorkflowUpdated, entries[0].Action)
	assert.Equal(t, models.ActivityWorkflowCreated, entries[1].Action)

	_, err = service.Activity(t.Context(), "missing", 10)
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflow_EventBusFailureDoesNotFailSave(t *testing.T) {
	persistence := newTestPersistence(t)

	bus := newFailingEventBus()
	service := NewWorkflow(testLogger(), persistence, bus, otelhelper.NoopTracer())

	created, err := service.Create(t.Context(), testutil.CreateTestWorkflow())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	bus.AssertExpectations(t)
}

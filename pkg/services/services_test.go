package services

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/enviroflow/pkg/mocks"
	"github.com/dukex/enviroflow/pkg/otelhelper"
	"github.com/dukex/enviroflow/pkg/persistence/file"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPersistence(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

// newAcceptingEventBus returns a bus mock that accepts every publish.
func newAcceptingEventBus() *mocks.MockEventBus {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return bus
}

func newWorkflowService(t *testing.T) (*Workflow, *file.Persistence, *mocks.MockEventBus) {
	t.Helper()

	persistence := newTestPersistence(t)
	bus := newAcceptingEventBus()

	return NewWorkflow(testLogger(), persistence, bus, otelhelper.NoopTracer()), persistence, bus
}

func newFailingEventBus() *mocks.MockEventBus {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	return bus
}

// Package eventbus carries workflow lifecycle events (saved, deleted, imported and
// readiness_changed) between the services that cause them and whoever listens, such as
// the API's readiness watcher or another instance behind Kafka.
package eventbus

import (
	"context"

	"github.com/dukex/enviroflow/pkg/events"
)

// Event is anything published on the bus. The type selects the decoder on the receiving side,
// see events.New.
type Event interface {
	GetType() events.EventType
}

// EventPublisher sends lifecycle events. The key is the workflow id, so events of one workflow
// stay ordered on partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches received events to the handler registered for their type.
// Handlers are registered before Subscribe is called.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a decoded event, e.g. *events.WorkflowReadinessChanged.
type EventHandler func(ctx context.Context, event any) error

// EventBus is a publisher and subscriber over one transport.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

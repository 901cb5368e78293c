package infrastructure

import (
	"context"

	"settlement/domain/events"
)

// NoopEventPublisher runs local handlers and drops the events.
// Used with EVENT_BACKEND=none and by the one-shot sweep command.
type NoopEventPublisher struct {
	local *localHandlers
}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{local: newLocalHandlers()}
}

// Publish hands the event to local handlers only
func (n *NoopEventPublisher) Publish(event events.Event) error {
	n.local.dispatch(context.Background(), event)
	return nil
}

// RegisterLocalHandler registers a handler invoked in-process for an event type
func (n *NoopEventPublisher) RegisterLocalHandler(eventType events.EventType, handler LocalEventHandler) {
	n.local.register(eventType, handler)
}

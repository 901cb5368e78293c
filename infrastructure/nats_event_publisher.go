package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"settlement/domain/events"
	"settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// LocalEventHandler handles an event inside the publishing process
type LocalEventHandler func(context.Context, events.Event) error

// localHandlers runs in-process handlers registered per event type
type localHandlers struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]LocalEventHandler
}

func newLocalHandlers() *localHandlers {
	return &localHandlers{handlers: make(map[events.EventType][]LocalEventHandler)}
}

func (l *localHandlers) register(eventType events.EventType, handler LocalEventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[eventType] = append(l.handlers[eventType], handler)
	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(l.handlers[eventType]),
	}).Info("Registered local event handler")
}

// dispatch invokes every handler of the event type. Handler errors are logged
// and never stop the remaining handlers or the bus publish.
func (l *localHandlers) dispatch(ctx context.Context, event events.Event) {
	l.mu.RLock()
	handlers := l.handlers[event.Type()]
	l.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Local event handler failed")
		}
	}
}

// NATSEventPublisher implements the EventPublisher interface using NATS
type NATSEventPublisher struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	local         *localHandlers
	timeout       time.Duration
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(publisher MessagePublisher, subjectMapper *EventSubjectMapper) *NATSEventPublisher {
	return &NATSEventPublisher{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		local:         newLocalHandlers(),
		timeout:       5 * time.Second,
	}
}

// Publish runs local handlers and publishes the event envelope to its subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	p.local.dispatch(ctx, event)

	subject := p.subjectMapper.MapEventToSubject(event)

	envelope, err := NewEventEnvelope(event)
	if err != nil {
		return err
	}
	data, err := envelope.Marshal()
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(ctx, subject, data); err != nil {
		// No stream captures the subject; nobody is listening
		if strings.Contains(err.Error(), "no response from stream") {
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	observability.GetMetrics().RecordEventPublished("nats", string(event.Type()))
	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")
	return nil
}

// RegisterLocalHandler registers a handler invoked in-process for an event type
func (p *NATSEventPublisher) RegisterLocalHandler(eventType events.EventType, handler LocalEventHandler) {
	p.local.register(eventType, handler)
}

// EnsureDomainEventStream ensures the settlement_events stream exists with the published subjects
func EnsureDomainEventStream(client *NATSClient, subjectMapper *EventSubjectMapper) error {
	return client.EnsureStream("settlement_events", "Settlement domain events", subjectMapper.GetAllSubjects(), 24*time.Hour)
}

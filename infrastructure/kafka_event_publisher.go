package infrastructure

import (
	"context"
	"fmt"
	"time"

	"settlement/domain/events"
	"settlement/infrastructure/observability"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// kafkaWriter is the part of kafka.Writer the publisher uses
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes event envelopes to a Kafka topic, keyed by the
// mapped subject so events of one kind stay ordered within a partition
type KafkaEventPublisher struct {
	writer        kafkaWriter
	subjectMapper *EventSubjectMapper
	local         *localHandlers
	timeout       time.Duration
}

// NewKafkaEventPublisher creates a publisher for a Kafka topic
func NewKafkaEventPublisher(brokers []string, topic string, subjectMapper *EventSubjectMapper) (*KafkaEventPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}

	log.WithFields(log.Fields{
		"brokers": brokers,
		"topic":   topic,
	}).Info("Kafka event publisher configured")

	return newKafkaEventPublisher(writer, subjectMapper), nil
}

func newKafkaEventPublisher(writer kafkaWriter, subjectMapper *EventSubjectMapper) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer:        writer,
		subjectMapper: subjectMapper,
		local:         newLocalHandlers(),
		timeout:       10 * time.Second,
	}
}

// Publish runs local handlers and writes the event envelope to the topic
func (p *KafkaEventPublisher) Publish(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	p.local.dispatch(ctx, event)

	envelope, err := NewEventEnvelope(event)
	if err != nil {
		return err
	}
	value, err := envelope.Marshal()
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(p.subjectMapper.MapEventToSubject(event)),
		Value: value,
		Time:  envelope.Timestamp.AsTime(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(envelope.EventID)},
			{Key: "event_type", Value: []byte(envelope.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event to Kafka: %w", err)
	}

	observability.GetMetrics().RecordEventPublished("kafka", string(event.Type()))
	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
	}).Debug("Successfully published event to Kafka")
	return nil
}

// RegisterLocalHandler registers a handler invoked in-process for an event type
func (p *KafkaEventPublisher) RegisterLocalHandler(eventType events.EventType, handler LocalEventHandler) {
	p.local.register(eventType, handler)
}

// Close flushes and closes the writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

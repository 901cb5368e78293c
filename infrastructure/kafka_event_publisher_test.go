package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"settlement/domain/entities"
	"settlement/domain/events"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeKafkaWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaEventPublisher_WritesEnvelope(t *testing.T) {
	writer := &fakeKafkaWriter{}
	publisher := newKafkaEventPublisher(writer, NewEventSubjectMapper())

	var handled []events.Event
	publisher.RegisterLocalHandler(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) error {
		handled = append(handled, event)
		return nil
	})

	event := events.BalanceChangeEvent{
		GuildID:         1,
		DiscordID:       2,
		Instrument:      entities.InstrumentCash,
		OldBalance:      500,
		NewBalance:      0,
		ChangeAmount:    -500,
		TransactionType: entities.TransactionTypeDeferredDebit,
	}
	require.NoError(t, publisher.Publish(event))

	require.Len(t, handled, 1)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "settlement.balance.changed", string(msg.Key))

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &envelope))
	assert.Equal(t, string(events.EventTypeBalanceChange), envelope.EventType)
	assert.Equal(t, "settlement", envelope.SourceService)
	assert.NotEmpty(t, envelope.EventID)

	var payload events.BalanceChangeEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event, payload)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaEventPublisher_WriteFailure(t *testing.T) {
	writer := &fakeKafkaWriter{err: errors.New("leader not available")}
	publisher := newKafkaEventPublisher(writer, NewEventSubjectMapper())

	err := publisher.Publish(events.TransferReleasedEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewKafkaEventPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaEventPublisher(nil, "settlement-events", NewEventSubjectMapper())
	assert.Error(t, err)
}

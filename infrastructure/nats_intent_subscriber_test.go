package infrastructure

import (
	"context"
	"testing"

	"settlement/application"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIntentHandler struct {
	intents []application.Intent
}

func (h *recordingIntentHandler) Handle(ctx context.Context, intent application.Intent) *application.Result {
	h.intents = append(h.intents, intent)
	return &application.Result{Message: "ok"}
}

func TestIntentSubscriber_HandleMessage(t *testing.T) {
	handler := &recordingIntentHandler{}
	sub := NewIntentSubscriber(context.Background(), nil, handler)

	payload := []byte(`{"id":"evt-1","kind":"command","guild_id":1,"channel_id":2,"actor_id":3,"name":"pay","options":{"user":"4","amount":"500"}}`)
	require.NoError(t, sub.handleMessage(payload))

	require.Len(t, handler.intents, 1)
	intent := handler.intents[0]
	assert.Equal(t, "evt-1", intent.ID)
	assert.Equal(t, application.IntentKindCommand, intent.Kind)
	assert.Equal(t, int64(3), intent.ActorID)
	assert.Equal(t, "500", intent.Option("amount", ""))
	assert.False(t, intent.Received.IsZero())
}

func TestIntentSubscriber_DropsMalformedMessages(t *testing.T) {
	handler := &recordingIntentHandler{}
	sub := NewIntentSubscriber(context.Background(), nil, handler)

	assert.NoError(t, sub.handleMessage([]byte("not json")))
	assert.Empty(t, handler.intents)
}

func TestIntentSubject(t *testing.T) {
	assert.Equal(t, "settlement.intents.command", IntentSubject(application.IntentKindCommand))
	assert.Equal(t, "settlement.intents.free_text", IntentSubject(application.IntentKindFreeText))
}

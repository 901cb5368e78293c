package infrastructure

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"settlement/application"

	log "github.com/sirupsen/logrus"
)

// IntentHandler handles intents submitted over the bus
type IntentHandler interface {
	Handle(ctx context.Context, intent application.Intent) *application.Result
}

// IntentSubscriber consumes intents other services publish on settlement.intents.<kind>
type IntentSubscriber struct {
	client  *NATSClient
	handler IntentHandler
	ctx     context.Context
}

// NewIntentSubscriber creates a new intent subscriber
func NewIntentSubscriber(ctx context.Context, client *NATSClient, handler IntentHandler) *IntentSubscriber {
	return &IntentSubscriber{
		client:  client,
		handler: handler,
		ctx:     ctx,
	}
}

// Start ensures the intent stream exists and subscribes to it
func (s *IntentSubscriber) Start() error {
	if err := s.client.EnsureStream("settlement_intents", "Intents submitted to the settlement engine", []string{IntentSubjects}, time.Hour); err != nil {
		return err
	}
	return s.client.Subscribe(IntentSubjects, s.handleMessage)
}

// handleMessage never asks for redelivery: a malformed intent stays malformed,
// and the engine releases the claim of a failed one so a resubmission is handled
func (s *IntentSubscriber) handleMessage(data []byte) error {
	intent, err := decodeIntent(data)
	if err != nil {
		log.WithError(err).Warn("Dropping malformed intent")
		return nil
	}

	result := s.handler.Handle(s.ctx, intent)
	log.WithFields(log.Fields{
		"intentID": intent.ID,
		"kind":     intent.Kind,
		"name":     intent.Name,
		"message":  result.Message,
	}).Debug("Handled bus intent")
	return nil
}

func decodeIntent(data []byte) (application.Intent, error) {
	var intent application.Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return intent, err
	}
	if intent.Received.IsZero() {
		intent.Received = time.Now()
	}
	return intent, nil
}

// IntentSubject returns the subject an intent of the given kind is published on
func IntentSubject(kind application.IntentKind) string {
	return IntentSubjectPrefix + "." + strings.ReplaceAll(string(kind), ".", "_")
}

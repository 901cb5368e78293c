package infrastructure

import (
	"fmt"

	"settlement/domain/events"
)

const (
	// IntentSubjectPrefix is where other services submit intents
	IntentSubjectPrefix = "settlement.intents"

	// IntentSubjects matches every intent subject
	IntentSubjects = IntentSubjectPrefix + ".>"
)

var eventSubjects = map[events.EventType]string{
	events.EventTypeBalanceChange:      "settlement.balance.changed",
	events.EventTypeWagerPlaced:        "settlement.session.wager_placed",
	events.EventTypeSessionStateChange: "settlement.session.state_changed",
	events.EventTypeSessionResolved:    "settlement.session.resolved",
	events.EventTypeTransferScheduled:  "settlement.transfer.scheduled",
	events.EventTypeTransferReleased:   "settlement.transfer.released",
	events.EventTypeTransferCancelled:  "settlement.transfer.cancelled",
	events.EventTypeCompensationFailed: "settlement.alerts.compensation_failed",
}

// EventSubjectMapper handles mapping between domain events and bus subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := eventSubjects[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("settlement.unknown.%s", event.Type())
}

// MapSubjectToEventType converts a subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range eventSubjects {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"settlement.balance.changed",
		"settlement.session.wager_placed",
		"settlement.session.state_changed",
		"settlement.session.resolved",
		"settlement.transfer.scheduled",
		"settlement.transfer.released",
		"settlement.transfer.cancelled",
		"settlement.alerts.compensation_failed",
	}
}

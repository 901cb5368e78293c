package events

import (
	"time"

	"settlement/domain/entities"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeWagerPlaced        EventType = "wager_placed"
	EventTypeSessionStateChange EventType = "session_state_change"
	EventTypeSessionResolved    EventType = "session_resolved"
	EventTypeTransferScheduled  EventType = "transfer_scheduled"
	EventTypeTransferReleased   EventType = "transfer_released"
	EventTypeTransferCancelled  EventType = "transfer_cancelled"
	EventTypeCompensationFailed EventType = "compensation_failed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is emitted for every ledger entry
type BalanceChangeEvent struct {
	GuildID         int64                    `json:"guild_id"`
	DiscordID       int64                    `json:"discord_id"`
	Instrument      entities.Instrument      `json:"instrument"`
	OldBalance      int64                    `json:"old_balance"`
	NewBalance      int64                    `json:"new_balance"`
	ChangeAmount    int64                    `json:"change_amount"`
	TransactionType entities.TransactionType `json:"transaction_type"`
	Reference       string                   `json:"reference,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// WagerPlacedEvent is emitted once a wager has been escrowed and appended
type WagerPlacedEvent struct {
	SessionID int64             `json:"session_id"`
	WagerID   int64             `json:"wager_id"`
	GuildID   int64             `json:"guild_id"`
	ChannelID int64             `json:"channel_id"`
	GameType  entities.GameType `json:"game_type"`
	DiscordID int64             `json:"discord_id"`
	Amount    int64             `json:"amount"`
	Selection string            `json:"selection"`
	ClosesAt  time.Time         `json:"closes_at"`
}

func (e WagerPlacedEvent) Type() EventType {
	return EventTypeWagerPlaced
}

// SessionStateChangeEvent is emitted on every session status transition
type SessionStateChangeEvent struct {
	SessionID int64                  `json:"session_id"`
	GuildID   int64                  `json:"guild_id"`
	ChannelID int64                  `json:"channel_id"`
	GameType  entities.GameType      `json:"game_type"`
	OldStatus entities.SessionStatus `json:"old_status"`
	NewStatus entities.SessionStatus `json:"new_status"`
}

func (e SessionStateChangeEvent) Type() EventType {
	return EventTypeSessionStateChange
}

// SessionResolvedEvent carries the settlement of a session
type SessionResolvedEvent struct {
	SessionID   int64                   `json:"session_id"`
	GuildID     int64                   `json:"guild_id"`
	ChannelID   int64                   `json:"channel_id"`
	GameType    entities.GameType       `json:"game_type"`
	Outcome     entities.SessionOutcome `json:"outcome"`
	Payouts     map[int64]int64         `json:"payouts"`
	TotalStaked int64                   `json:"total_staked"`
	TotalPaid   int64                   `json:"total_paid"`
}

func (e SessionResolvedEvent) Type() EventType {
	return EventTypeSessionResolved
}

// TransferEvent describes a deferred transfer at one point of its life
type TransferEvent struct {
	TransferID int64                 `json:"transfer_id"`
	Reference  string                `json:"reference"`
	GuildID    int64                 `json:"guild_id"`
	Kind       entities.TransferKind `json:"kind"`
	SenderID   int64                 `json:"sender_id"`
	ReceiverID int64                 `json:"receiver_id"`
	Amount     int64                 `json:"amount"`
	Payout     int64                 `json:"payout"`
	ReleaseAt  time.Time             `json:"release_at"`
}

// NewTransferEvent copies the fields of a deferred transfer
func NewTransferEvent(t *entities.DeferredTransfer) TransferEvent {
	return TransferEvent{
		TransferID: t.ID,
		Reference:  t.Reference.String(),
		GuildID:    t.GuildID,
		Kind:       t.Kind,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Amount:     t.Amount,
		Payout:     t.Payout,
		ReleaseAt:  t.ReleaseAt,
	}
}

// TransferScheduledEvent is emitted after the sender has been debited
type TransferScheduledEvent struct{ TransferEvent }

func (e TransferScheduledEvent) Type() EventType {
	return EventTypeTransferScheduled
}

// TransferReleasedEvent is emitted after the receiver has been credited
type TransferReleasedEvent struct{ TransferEvent }

func (e TransferReleasedEvent) Type() EventType {
	return EventTypeTransferReleased
}

// TransferCancelledEvent is emitted after the sender has been refunded
type TransferCancelledEvent struct{ TransferEvent }

func (e TransferCancelledEvent) Type() EventType {
	return EventTypeTransferCancelled
}

// CompensationFailedEvent flags money that could not be restored automatically
type CompensationFailedEvent struct {
	GuildID    int64               `json:"guild_id"`
	DiscordID  int64               `json:"discord_id"`
	Instrument entities.Instrument `json:"instrument"`
	Amount     int64               `json:"amount"`
	Reference  string              `json:"reference"`
	Error      string              `json:"error"`
}

func (e CompensationFailedEvent) Type() EventType {
	return EventTypeCompensationFailed
}

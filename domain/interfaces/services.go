package interfaces

import (
	"context"

	"settlement/domain/entities"
	"settlement/domain/resolver"
)

// MoveRequest moves an amount between two account instruments
type MoveRequest struct {
	FromID         int64
	FromInstrument entities.Instrument
	ToID           int64
	ToInstrument   entities.Instrument
	Amount         int64
	Memo           string
	Reference      string // Optional; the legs are fenced with suffixes of it
	DebitType      entities.TransactionType
	CreditType     entities.TransactionType
}

// MoveResult holds both legs of a completed move
type MoveResult struct {
	Debit  *entities.LedgerEntry
	Credit *entities.LedgerEntry
}

// LedgerService defines the single entry point for balance mutations
type LedgerService interface {
	// Transfer applies one mutation to one account instrument
	Transfer(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error)

	// Move debits one instrument and credits another, compensating the debit
	// when the credit cannot be applied
	Move(ctx context.Context, req MoveRequest) (*MoveResult, error)

	// Balances returns an actor's balances, opening the account if needed
	Balances(ctx context.Context, discordID int64) (*entities.Balances, error)

	// History returns an actor's latest ledger entries
	History(ctx context.Context, discordID int64, limit int) ([]*entities.LedgerEntry, error)
}

// JoinRequest places a wager into the open session of a table
type JoinRequest struct {
	ChannelID  int64
	GameType   entities.GameType
	DiscordID  int64
	Amount     int64
	Instrument entities.Instrument
	Selection  string
	Attempt    string // Keys the escrow; a redelivered join reuses it
}

// JoinResult is the session and wager produced by a join
type JoinResult struct {
	Session *entities.BettingSession
	Wager   *entities.Wager
	Created bool // Whether this join opened the session
}

// BettingSessionService defines the interface for the betting session state machine
type BettingSessionService interface {
	// Join escrows the stake and appends the wager to the table's open session
	Join(ctx context.Context, req JoinRequest) (*JoinResult, error)

	// CloseWindow locks a session whose window elapsed, or expires it when empty
	CloseWindow(ctx context.Context, sessionID int64) (*entities.BettingSession, error)

	// ForceResolve closes the table's session early and settles it
	ForceResolve(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.SessionSettlement, error)

	// Settle draws or replays the outcome of a locked or resolving session and pays it out
	Settle(ctx context.Context, sessionID int64) (*entities.SessionSettlement, error)

	// GetActive returns the table's non-terminal session with its wagers
	GetActive(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.BettingSession, error)

	// Recent returns the latest rounds of a table, resolved ones included
	Recent(ctx context.Context, channelID int64, limit int) ([]*entities.BettingSession, error)
}

// ScheduleRequest creates a deferred transfer
type ScheduleRequest struct {
	Kind       entities.TransferKind
	SenderID   int64
	ReceiverID int64 // Ignored for kinds that pay the sender back
	Amount     int64
	Reason     string
	Reference  string // Optional stable key of the originating event
}

// DeferredTransferService defines the interface for the deferred settlement queue
type DeferredTransferService interface {
	// Quote computes fee, payout and release time without touching money
	Quote(req ScheduleRequest) (*entities.DeferredTransfer, error)

	// Schedule debits the sender and records a pending transfer
	Schedule(ctx context.Context, req ScheduleRequest) (*entities.DeferredTransfer, error)

	// Release flips a due transfer to released and credits the receiver.
	// Returns ErrAlreadyProcessed when another sweep won the flip.
	Release(ctx context.Context, transfer *entities.DeferredTransfer) error

	// Resettle retries the credit or refund of a flipped transfer
	Resettle(ctx context.Context, transfer *entities.DeferredTransfer) error

	// Cancel flips a pending transfer to cancelled and refunds the sender
	Cancel(ctx context.Context, transferID, actorID int64) (*entities.DeferredTransfer, error)

	// ListPending returns an actor's pending transfers
	ListPending(ctx context.Context, senderID int64) ([]*entities.DeferredTransfer, error)
}

// OutcomeResolver draws outcomes and payout tables for sessions
type OutcomeResolver interface {
	NormalizeSelection(gameType entities.GameType, selection string, discordID int64) (string, error)
	Resolve(gameType entities.GameType, wagers []*entities.Wager) (*resolver.Resolution, error)
	Replay(gameType entities.GameType, outcome entities.SessionOutcome, wagers []*entities.Wager) (*resolver.Resolution, error)
}

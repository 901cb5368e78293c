package interfaces

import (
	"context"
	"time"

	"settlement/domain/entities"
	"settlement/domain/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account rows
type AccountRepository interface {
	// EnsureAccount creates the instrument rows of an account if missing.
	// The starting cash is credited in the same statement; the returned entry
	// is nil when the account already existed.
	EnsureAccount(ctx context.Context, discordID int64, startingBalance, creditLimit int64) (*entities.LedgerEntry, error)

	// GetBalances returns the account's balances, nil if it does not exist
	GetBalances(ctx context.Context, discordID int64) (*entities.Balances, error)
}

// LedgerRepository defines the interface for atomic balance mutations
type LedgerRepository interface {
	// ApplyDelta conditionally mutates one balance and appends its audit entry
	// in a single statement. Returns ErrInsufficientFunds when the condition
	// fails, ErrAlreadyProcessed when the reference has already landed and an
	// ExternalServiceError for any other storage failure.
	ApplyDelta(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error)

	// GetByReference returns the entry fenced by a reference, nil if none
	GetByReference(ctx context.Context, reference string) (*entities.LedgerEntry, error)

	// GetHistory returns the latest entries of an account
	GetHistory(ctx context.Context, discordID int64, limit int) ([]*entities.LedgerEntry, error)
}

// BettingSessionRepository defines the interface for betting session data access
type BettingSessionRepository interface {
	// GetOrCreateOpen returns the active session for a table and game or opens a new one.
	// The bool reports whether this call created it.
	GetOrCreateOpen(ctx context.Context, channelID int64, gameType entities.GameType, openedAt, closesAt time.Time) (*entities.BettingSession, bool, error)

	// GetByID retrieves a session by its ID
	GetByID(ctx context.Context, id int64) (*entities.BettingSession, error)

	// GetActive returns the non-terminal session for a table and game, if any
	GetActive(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.BettingSession, error)

	// CloseWindow moves an open session to locked, or to expired when it has no wagers.
	// Returns nil when the session was no longer open.
	CloseWindow(ctx context.Context, id int64, now time.Time) (*entities.BettingSession, error)

	// BeginResolving moves a locked session to resolving and stores its outcome.
	// Returns false when another caller got there first.
	BeginResolving(ctx context.Context, id int64, outcome entities.SessionOutcome) (bool, error)

	// MarkResolved moves a resolving session to resolved
	MarkResolved(ctx context.Context, id int64, now time.Time) (bool, error)

	// ListDue returns sessions across all guilds that need the worker: open
	// sessions past their window plus locked and resolving ones
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.BettingSession, error)

	// ListRecent returns the latest sessions of a table for history views
	ListRecent(ctx context.Context, channelID int64, limit int) ([]*entities.BettingSession, error)
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Append adds an escrowed wager to an open session whose window has not
	// elapsed. Returns ErrSessionLocked or ErrAlreadyJoined.
	Append(ctx context.Context, wager *entities.Wager, now time.Time) error

	// GetBySession returns all wagers of a session ordered by placement
	GetBySession(ctx context.Context, sessionID int64) ([]*entities.Wager, error)

	// GetBySessionAndActor returns an actor's wager in a session, nil if none
	GetBySessionAndActor(ctx context.Context, sessionID, discordID int64) (*entities.Wager, error)

	// MarkSettled records the multiplier and payout of a wager once
	MarkSettled(ctx context.Context, wagerID int64, multiplier decimal.Decimal, payout int64, now time.Time) (bool, error)
}

// DeferredTransferRepository defines the interface for deferred transfer data access
type DeferredTransferRepository interface {
	// Create inserts a pending transfer and fills its ID
	Create(ctx context.Context, transfer *entities.DeferredTransfer) error

	// GetByID retrieves a transfer by its ID
	GetByID(ctx context.Context, id int64) (*entities.DeferredTransfer, error)

	// GetByReference retrieves a transfer by its reference
	GetByReference(ctx context.Context, reference uuid.UUID) (*entities.DeferredTransfer, error)

	// ListDue returns pending transfers across all guilds whose release time has passed
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.DeferredTransfer, error)

	// ListUnsettled returns released or cancelled transfers across all guilds
	// whose credit or refund has not been recorded
	ListUnsettled(ctx context.Context, limit int) ([]*entities.DeferredTransfer, error)

	// ListPendingBySender returns an actor's pending transfers
	ListPendingBySender(ctx context.Context, senderID int64) ([]*entities.DeferredTransfer, error)

	// Transition conditionally flips the status of a transfer.
	// Returns false when the transfer was not in the expected status.
	Transition(ctx context.Context, id int64, from, to entities.TransferStatus, now time.Time) (bool, error)

	// MarkSettled records that the credit or refund of a flipped transfer landed
	MarkSettled(ctx context.Context, id int64, now time.Time) (bool, error)
}

// IdempotencyRepository defines the interface for the durable idempotency key table
type IdempotencyRepository interface {
	// Claim records a key until expiresAt. Returns false when an unexpired claim exists.
	Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error)

	// Release drops a claim so the event can be processed again
	Release(ctx context.Context, key string) error

	// PurgeExpired deletes keys that expired before now
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

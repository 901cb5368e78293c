package application

import (
	"context"

	"settlement/domain/interfaces"
)

// UnitOfWork groups the guild-scoped repositories and the event bus used to
// handle one intent or one sweep item
type UnitOfWork interface {
	// Begin prepares the repositories
	Begin(ctx context.Context) error

	// Commit ends the unit and publishes the events it collected
	Commit() error

	// Rollback ends a failed unit
	Rollback() error

	// Repository getters
	AccountRepository() interfaces.AccountRepository
	LedgerRepository() interfaces.LedgerRepository
	BettingSessionRepository() interfaces.BettingSessionRepository
	WagerRepository() interfaces.WagerRepository
	DeferredTransferRepository() interfaces.DeferredTransferRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// CreateForGuild creates a new UnitOfWork instance scoped to a specific guild
	CreateForGuild(guildID int64) UnitOfWork
}

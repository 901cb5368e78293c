package repository

import (
	"context"
	"fmt"

	"settlement/application"
	"settlement/database"
	"settlement/domain/interfaces"
)

// unitOfWork implements the UnitOfWork interface. The store offers no
// cross-table transaction, so every repository call commits on its own and
// the unit only carries the guild scope of the repositories it hands out.
type unitOfWork struct {
	db           *database.DB
	guildID      int64
	started      bool
	accountRepo  interfaces.AccountRepository
	ledgerRepo   interfaces.LedgerRepository
	sessionRepo  interfaces.BettingSessionRepository
	wagerRepo    interfaces.WagerRepository
	transferRepo interfaces.DeferredTransferRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB) *unitOfWorkFactory {
	return &unitOfWorkFactory{
		db: db,
	}
}

type unitOfWorkFactory struct {
	db *database.DB
}

// CreateForGuild creates a new UnitOfWork scoped to a guild
func (f *unitOfWorkFactory) CreateForGuild(guildID int64) application.UnitOfWork {
	return &unitOfWork{
		db:      f.db,
		guildID: guildID,
	}
}

// Begin builds the guild-scoped repositories
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.started {
		return fmt.Errorf("unit of work already started")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}

	u.started = true
	u.accountRepo = NewAccountRepositoryScoped(u.db.Pool, u.guildID)
	u.ledgerRepo = NewLedgerRepositoryScoped(u.db.Pool, u.guildID)
	u.sessionRepo = NewBettingSessionRepositoryScoped(u.db.Pool, u.guildID)
	u.wagerRepo = NewWagerRepositoryScoped(u.db.Pool, u.guildID)
	u.transferRepo = NewDeferredTransferRepositoryScoped(u.db.Pool, u.guildID)

	return nil
}

// Commit ends the unit. Statements have already committed one by one.
func (u *unitOfWork) Commit() error {
	if !u.started {
		return fmt.Errorf("no unit of work to commit")
	}
	u.started = false
	return nil
}

// Rollback ends the unit. Landed statements stay landed; the services
// compensate partial work themselves.
func (u *unitOfWork) Rollback() error {
	u.started = false
	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() interfaces.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// BettingSessionRepository returns the betting session repository for this unit of work
func (u *unitOfWork) BettingSessionRepository() interfaces.BettingSessionRepository {
	if u.sessionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.sessionRepo
}

// WagerRepository returns the wager repository for this unit of work
func (u *unitOfWork) WagerRepository() interfaces.WagerRepository {
	if u.wagerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.wagerRepo
}

// DeferredTransferRepository returns the deferred transfer repository for this unit of work
func (u *unitOfWork) DeferredTransferRepository() interfaces.DeferredTransferRepository {
	if u.transferRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transferRepo
}

// EventBus is provided by the infrastructure wrapper
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	panic("event bus not configured - use the infrastructure unit of work factory")
}

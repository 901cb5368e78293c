package infrastructure

import (
	"context"

	"settlement/application"
	"settlement/domain/interfaces"
)

// unitOfWork wraps the repository UnitOfWork and publishes collected events
// when the unit ends
type unitOfWork struct {
	inner                  application.UnitOfWork
	transactionalPublisher *TransactionalPublisher
	ctx                    context.Context
}

// Begin prepares the repositories
func (u *unitOfWork) Begin(ctx context.Context) error {
	u.ctx = ctx
	return u.inner.Begin(ctx)
}

// Commit ends the unit and flushes events
func (u *unitOfWork) Commit() error {
	if err := u.inner.Commit(); err != nil {
		return err
	}
	return u.flush()
}

// Rollback ends the unit. Its statements committed one by one, so the events
// they produced describe money that already moved and are flushed as well.
func (u *unitOfWork) Rollback() error {
	if err := u.inner.Rollback(); err != nil {
		return err
	}
	return u.flush()
}

func (u *unitOfWork) flush() error {
	ctx := u.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Events are best effort once the statements have landed
	_ = u.transactionalPublisher.Flush(context.WithoutCancel(ctx))
	return nil
}

// Repository getters - delegate to inner UnitOfWork
func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	return u.inner.AccountRepository()
}

func (u *unitOfWork) LedgerRepository() interfaces.LedgerRepository {
	return newMeteredLedgerRepository(u.inner.LedgerRepository())
}

func (u *unitOfWork) BettingSessionRepository() interfaces.BettingSessionRepository {
	return u.inner.BettingSessionRepository()
}

func (u *unitOfWork) WagerRepository() interfaces.WagerRepository {
	return u.inner.WagerRepository()
}

func (u *unitOfWork) DeferredTransferRepository() interfaces.DeferredTransferRepository {
	return u.inner.DeferredTransferRepository()
}

// EventBus returns the transactional event publisher
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	return u.transactionalPublisher
}

package application

import (
	"settlement/domain/interfaces"
	"settlement/domain/services"
)

// serviceSet holds the domain services built over one unit of work
type serviceSet struct {
	ledger    *services.LedgerService
	sessions  *services.BettingSessionService
	transfers *services.DeferredTransferService
}

func newServiceSet(uow UnitOfWork, resolver interfaces.OutcomeResolver) *serviceSet {
	ledger := services.NewLedgerService(
		uow.AccountRepository(),
		uow.LedgerRepository(),
		uow.EventBus(),
	)
	return &serviceSet{
		ledger: ledger,
		sessions: services.NewBettingSessionService(
			uow.BettingSessionRepository(),
			uow.WagerRepository(),
			ledger,
			resolver,
			uow.EventBus(),
		),
		transfers: services.NewDeferredTransferService(
			uow.DeferredTransferRepository(),
			ledger,
			uow.EventBus(),
		),
	}
}

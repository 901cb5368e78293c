package infrastructure

import (
	"context"
	"errors"

	"settlement/domain/entities"
	"settlement/domain/interfaces"
	"settlement/infrastructure/observability"
)

// meteredLedgerRepository counts ledger mutations by type and outcome
type meteredLedgerRepository struct {
	interfaces.LedgerRepository
}

func newMeteredLedgerRepository(inner interfaces.LedgerRepository) interfaces.LedgerRepository {
	return &meteredLedgerRepository{LedgerRepository: inner}
}

func (r *meteredLedgerRepository) ApplyDelta(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error) {
	entry, err := r.LedgerRepository.ApplyDelta(ctx, mutation)
	observability.GetMetrics().RecordLedgerMutation(string(mutation.TransactionType), mutationOutcome(err))
	return entry, err
}

func mutationOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, entities.ErrAlreadyProcessed):
		return observability.OutcomeSkipped
	case errors.Is(err, entities.ErrInsufficientFunds):
		return observability.OutcomeRejected
	default:
		return observability.OutcomeFailed
	}
}

package entities

// TransactionType represents the reason for a ledger entry
type TransactionType string

const (
	// Betting session transactions
	TransactionTypeWagerEscrow TransactionType = "wager_escrow"
	TransactionTypeWagerPayout TransactionType = "wager_payout"
	TransactionTypeWagerRefund TransactionType = "wager_refund"

	// Immediate movements
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeInternal    TransactionType = "internal_move"

	// Deferred settlement
	TransactionTypeDeferredDebit   TransactionType = "deferred_debit"
	TransactionTypeDeferredRelease TransactionType = "deferred_release"
	TransactionTypeDeferredRefund  TransactionType = "deferred_refund"

	// Compensation of a failed composite operation
	TransactionTypeCompensation TransactionType = "compensation"

	// System transactions
	TransactionTypeInitial    TransactionType = "initial"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// IsWagerRelated returns true for escrow, payout and refund entries
func (tt TransactionType) IsWagerRelated() bool {
	return tt == TransactionTypeWagerEscrow ||
		tt == TransactionTypeWagerPayout ||
		tt == TransactionTypeWagerRefund
}

// IsDeferred returns true for entries written by the deferred settlement queue
func (tt TransactionType) IsDeferred() bool {
	return tt == TransactionTypeDeferredDebit ||
		tt == TransactionTypeDeferredRelease ||
		tt == TransactionTypeDeferredRefund
}

// IsReversal returns true for entries that undo an earlier movement
func (tt TransactionType) IsReversal() bool {
	return tt == TransactionTypeCompensation ||
		tt == TransactionTypeWagerRefund ||
		tt == TransactionTypeDeferredRefund
}

package entities

import "math"

// LedgerMutation is one requested change to one instrument of one account
type LedgerMutation struct {
	DiscordID       int64
	Instrument      Instrument
	Delta           int64 // Negative takes money from the holder, positive gives it
	TransactionType TransactionType
	Memo            string
	Reference       string // Optional fencing reference, unique across the ledger
	Metadata        map[string]any
}

// Validate checks the mutation before it reaches storage
func (m LedgerMutation) Validate() error {
	if m.DiscordID <= 0 {
		return NewValidationError("actor", "missing account holder")
	}
	if !m.Instrument.IsValid() {
		return NewValidationError("instrument", "unknown instrument %q", m.Instrument)
	}
	if m.Delta == 0 {
		return NewValidationError("amount", "must not be zero")
	}
	if m.Delta == math.MinInt64 || abs(m.Delta) > MaxAmount {
		return NewValidationError("amount", "must be at most %d", MaxAmount)
	}
	if m.TransactionType == "" {
		return NewValidationError("transaction type", "missing")
	}
	return nil
}

// ReferencePtr returns the reference as a nullable column value
func (m LedgerMutation) ReferencePtr() *string {
	if m.Reference == "" {
		return nil
	}
	ref := m.Reference
	return &ref
}

// ValidateAmount checks an actor supplied amount
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}
	if amount > MaxAmount {
		return NewValidationError("amount", "must be at most %d", MaxAmount)
	}
	return nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

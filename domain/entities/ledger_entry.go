package entities

import (
	"fmt"
	"time"
)

// LedgerEntry is the audit record appended with every balance mutation
type LedgerEntry struct {
	ID              int64           `db:"id"`
	GuildID         int64           `db:"guild_id"`
	DiscordID       int64           `db:"discord_id"`
	Instrument      Instrument      `db:"instrument"`
	Delta           int64           `db:"delta"`         // Requested change
	AppliedDelta    int64           `db:"applied_delta"` // Change actually applied to the stored balance
	BalanceBefore   int64           `db:"balance_before"`
	BalanceAfter    int64           `db:"balance_after"`
	TransactionType TransactionType `db:"transaction_type"`
	Memo            string          `db:"memo"`
	Reference       *string         `db:"reference"`
	Metadata        map[string]any  `db:"metadata"`
	CreatedAt       time.Time       `db:"created_at"`
}

// IsDebit reports whether the entry took money out of the holder's hands.
// On the credit instrument that is an increase in debt.
func (e *LedgerEntry) IsDebit() bool {
	return e.Delta < 0
}

// ReferenceOrEmpty returns the fencing reference or an empty string
func (e *LedgerEntry) ReferenceOrEmpty() string {
	if e.Reference == nil {
		return ""
	}
	return *e.Reference
}

// Describe returns a short human readable line for history listings
func (e *LedgerEntry) Describe() string {
	sign := "+"
	if e.Delta < 0 {
		sign = "-"
	}
	amount := e.Delta
	if amount < 0 {
		amount = -amount
	}
	if e.Memo == "" {
		return fmt.Sprintf("%s%d %s (%s)", sign, amount, e.Instrument, e.TransactionType)
	}
	return fmt.Sprintf("%s%d %s (%s: %s)", sign, amount, e.Instrument, e.TransactionType, e.Memo)
}

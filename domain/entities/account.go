package entities

import "time"

// InstrumentBalance is one stored balance row of an account
type InstrumentBalance struct {
	ID          int64      `db:"id"`
	GuildID     int64      `db:"guild_id"`
	DiscordID   int64      `db:"discord_id"`
	Instrument  Instrument `db:"instrument"`
	Balance     int64      `db:"balance"`
	CreditLimit int64      `db:"credit_limit"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Balances is the combined view of an account across instruments
type Balances struct {
	GuildID     int64
	DiscordID   int64
	Cash        int64
	Bank        int64
	CreditDebt  int64
	CreditLimit int64
}

// AvailableCredit returns how much more can be drawn on the credit line
func (b *Balances) AvailableCredit() int64 {
	return b.CreditLimit - b.CreditDebt
}

// Of returns the balance of an instrument. Debit reports the bank balance and
// credit reports outstanding debt.
func (b *Balances) Of(instrument Instrument) int64 {
	switch instrument.StorageInstrument() {
	case InstrumentCash:
		return b.Cash
	case InstrumentBank:
		return b.Bank
	case InstrumentCredit:
		return b.CreditDebt
	}
	return 0
}

// NetWorth is cash plus bank minus credit debt
func (b *Balances) NetWorth() int64 {
	return b.Cash + b.Bank - b.CreditDebt
}

// BalancesFromRows folds stored instrument rows into a Balances view
func BalancesFromRows(guildID, discordID int64, rows []*InstrumentBalance) *Balances {
	balances := &Balances{GuildID: guildID, DiscordID: discordID}
	for _, row := range rows {
		switch row.Instrument {
		case InstrumentCash:
			balances.Cash = row.Balance
		case InstrumentBank:
			balances.Bank = row.Balance
		case InstrumentCredit:
			balances.CreditDebt = row.Balance
			balances.CreditLimit = row.CreditLimit
		}
	}
	return balances
}

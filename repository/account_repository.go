package repository

import (
	"context"
	"fmt"

	"settlement/database"
	"settlement/domain/entities"
)

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q       Queryable
	guildID int64
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// NewAccountRepositoryScoped creates a new account repository with a guild scope
func NewAccountRepositoryScoped(q Queryable, guildID int64) *AccountRepository {
	return &AccountRepository{
		q:       q,
		guildID: guildID,
	}
}

// EnsureAccount inserts the cash, bank and credit rows of an account if they
// are missing and records the starting cash in the same statement
func (r *AccountRepository) EnsureAccount(ctx context.Context, discordID int64, startingBalance, creditLimit int64) (*entities.LedgerEntry, error) {
	query := `
		WITH created AS (
			INSERT INTO accounts (guild_id, discord_id, instrument, balance, credit_limit)
			VALUES
				($1, $2, 'cash', $3, 0),
				($1, $2, 'bank', 0, 0),
				($1, $2, 'credit', 0, $4)
			ON CONFLICT (guild_id, discord_id, instrument) DO NOTHING
			RETURNING instrument, balance
		)
		INSERT INTO ledger_entries
			(guild_id, discord_id, instrument, delta, applied_delta, balance_before, balance_after, transaction_type, memo)
		SELECT $1, $2, 'cash', c.balance, c.balance, 0, c.balance, 'initial', 'starting balance'
		FROM created c
		WHERE c.instrument = 'cash' AND c.balance > 0
		RETURNING id, created_at, balance_after
	`

	rows, err := r.q.Query(ctx, query, r.guildID, discordID, startingBalance, creditLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account %d in guild %d: %w", discordID, r.guildID, err)
	}
	defer rows.Close()

	var entry *entities.LedgerEntry
	for rows.Next() {
		entry = &entities.LedgerEntry{
			GuildID:         r.guildID,
			DiscordID:       discordID,
			Instrument:      entities.InstrumentCash,
			TransactionType: entities.TransactionTypeInitial,
			Memo:            "starting balance",
		}
		if err := rows.Scan(&entry.ID, &entry.CreatedAt, &entry.BalanceAfter); err != nil {
			return nil, fmt.Errorf("failed to scan initial ledger entry: %w", err)
		}
		entry.Delta = entry.BalanceAfter
		entry.AppliedDelta = entry.BalanceAfter
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to ensure account %d in guild %d: %w", discordID, r.guildID, err)
	}
	return entry, nil
}

// GetBalances returns the balances of an account in the current guild
func (r *AccountRepository) GetBalances(ctx context.Context, discordID int64) (*entities.Balances, error) {
	query := `
		SELECT id, guild_id, discord_id, instrument, balance, credit_limit, created_at, updated_at
		FROM accounts
		WHERE guild_id = $1 AND discord_id = $2
	`

	rows, err := r.q.Query(ctx, query, r.guildID, discordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances of %d in guild %d: %w", discordID, r.guildID, err)
	}
	defer rows.Close()

	var balanceRows []*entities.InstrumentBalance
	for rows.Next() {
		var row entities.InstrumentBalance
		if err := rows.Scan(
			&row.ID,
			&row.GuildID,
			&row.DiscordID,
			&row.Instrument,
			&row.Balance,
			&row.CreditLimit,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		balanceRows = append(balanceRows, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account rows: %w", err)
	}
	if len(balanceRows) == 0 {
		return nil, nil
	}

	return entities.BalancesFromRows(r.guildID, discordID, balanceRows), nil
}

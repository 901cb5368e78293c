package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"settlement/database"
	"settlement/domain/entities"

	"github.com/jackc/pgx/v5"
)

const ledgerReferenceIndex = "ledger_entries_reference_key"

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q       Queryable
	guildID int64
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// NewLedgerRepositoryScoped creates a new ledger repository with a guild scope
func NewLedgerRepositoryScoped(q Queryable, guildID int64) *LedgerRepository {
	return &LedgerRepository{
		q:       q,
		guildID: guildID,
	}
}

// ApplyDelta locks the balance row, applies the delta only if the result stays
// within bounds, and appends the audit entry. All of it is one statement, so
// either everything lands or nothing does.
//
// Cash and bank rows hold money and must stay non-negative. The credit row
// holds debt: a debit grows it up to the limit, a credit shrinks it to no less
// than zero.
func (r *LedgerRepository) ApplyDelta(ctx context.Context, mutation entities.LedgerMutation) (*entities.LedgerEntry, error) {
	var metadataJSON []byte
	if mutation.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(mutation.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ledger metadata: %w", err)
		}
	}

	query := `
		WITH acct AS (
			SELECT id, balance, credit_limit
			FROM accounts
			WHERE guild_id = $1 AND discord_id = $2 AND instrument = $3
			FOR UPDATE
		), upd AS (
			UPDATE accounts a
			SET balance = CASE
					WHEN a.instrument = 'credit' THEN GREATEST(acct.balance - $4::BIGINT, 0)
					ELSE acct.balance + $4::BIGINT
				END,
				updated_at = NOW()
			FROM acct
			WHERE a.id = acct.id
			  AND CASE
					WHEN a.instrument = 'credit' THEN acct.balance - $4::BIGINT <= acct.credit_limit
					ELSE acct.balance + $4::BIGINT >= 0
				END
			RETURNING acct.balance AS balance_before, a.balance AS balance_after
		)
		INSERT INTO ledger_entries
			(guild_id, discord_id, instrument, delta, applied_delta, balance_before, balance_after,
			 transaction_type, memo, reference, metadata)
		SELECT $1, $2, $5, $4::BIGINT, upd.balance_after - upd.balance_before, upd.balance_before, upd.balance_after,
			$6, $7, $8, $9
		FROM upd
		RETURNING id, applied_delta, balance_before, balance_after, created_at
	`

	entry := &entities.LedgerEntry{
		GuildID:         r.guildID,
		DiscordID:       mutation.DiscordID,
		Instrument:      mutation.Instrument,
		Delta:           mutation.Delta,
		TransactionType: mutation.TransactionType,
		Memo:            mutation.Memo,
		Reference:       mutation.ReferencePtr(),
		Metadata:        mutation.Metadata,
	}

	err := r.q.QueryRow(ctx, query,
		r.guildID,
		mutation.DiscordID,
		mutation.Instrument.StorageInstrument(),
		mutation.Delta,
		mutation.Instrument,
		mutation.TransactionType,
		mutation.Memo,
		mutation.ReferencePtr(),
		metadataJSON,
	).Scan(&entry.ID, &entry.AppliedDelta, &entry.BalanceBefore, &entry.BalanceAfter, &entry.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrInsufficientFunds
	}
	if isUniqueViolation(err, ledgerReferenceIndex) {
		return nil, fmt.Errorf("ledger reference %s: %w", mutation.Reference, entities.ErrAlreadyProcessed)
	}
	if err != nil {
		return nil, entities.NewExternalServiceError("apply ledger delta",
			fmt.Errorf("failed to apply %d to %s of %d in guild %d: %w", mutation.Delta, mutation.Instrument, mutation.DiscordID, r.guildID, err))
	}

	return entry, nil
}

const ledgerEntryColumns = `id, guild_id, discord_id, instrument, delta, applied_delta, balance_before, balance_after,
	transaction_type, memo, reference, metadata, created_at`

func scanLedgerEntry(row pgx.Row) (*entities.LedgerEntry, error) {
	var entry entities.LedgerEntry
	var metadataJSON []byte
	err := row.Scan(
		&entry.ID,
		&entry.GuildID,
		&entry.DiscordID,
		&entry.Instrument,
		&entry.Delta,
		&entry.AppliedDelta,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.TransactionType,
		&entry.Memo,
		&entry.Reference,
		&metadataJSON,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger metadata: %w", err)
		}
	}
	return &entry, nil
}

// GetByReference returns the entry fenced by a reference. References are
// globally unique, so the lookup is not guild scoped.
func (r *LedgerRepository) GetByReference(ctx context.Context, reference string) (*entities.LedgerEntry, error) {
	query := `SELECT ` + ledgerEntryColumns + ` FROM ledger_entries WHERE reference = $1`

	entry, err := scanLedgerEntry(r.q.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry %s: %w", reference, err)
	}
	return entry, nil
}

// GetHistory returns the latest entries of an account in the current guild
func (r *LedgerRepository) GetHistory(ctx context.Context, discordID int64, limit int) ([]*entities.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerEntryColumns + `
		FROM ledger_entries
		WHERE guild_id = $1 AND discord_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, r.guildID, discordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger history of %d: %w", discordID, err)
	}
	defer rows.Close()

	var entries []*entities.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger history: %w", err)
	}
	return entries, nil
}

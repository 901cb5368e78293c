package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement/database"
	"settlement/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const wagerActorConstraint = "wagers_one_per_actor"

// WagerRepository implements the WagerRepository interface
type WagerRepository struct {
	q       Queryable
	guildID int64
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// NewWagerRepositoryScoped creates a new wager repository with a guild scope
func NewWagerRepositoryScoped(q Queryable, guildID int64) *WagerRepository {
	return &WagerRepository{
		q:       q,
		guildID: guildID,
	}
}

// Append counts the wager on its session and inserts it in one statement.
// The session row lock orders appends against CloseWindow, so a wager either
// lands before the window closes or not at all.
func (r *WagerRepository) Append(ctx context.Context, wager *entities.Wager, now time.Time) error {
	query := `
		WITH bump AS (
			UPDATE betting_sessions
			SET wager_count = wager_count + 1, updated_at = NOW()
			WHERE id = $1 AND status = 'open' AND closes_at > $7
			RETURNING id
		)
		INSERT INTO wagers (session_id, guild_id, discord_id, amount, instrument, selection, placed_at)
		SELECT bump.id, $2, $3, $4, $5, $6, $7
		FROM bump
		RETURNING id, placed_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.SessionID,
		r.guildID,
		wager.DiscordID,
		wager.Amount,
		wager.Instrument,
		wager.Selection,
		now,
	).Scan(&wager.ID, &wager.PlacedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return entities.ErrSessionLocked
	}
	if isUniqueViolation(err, wagerActorConstraint) {
		return entities.ErrAlreadyJoined
	}
	if err != nil {
		return fmt.Errorf("failed to append wager to session %d: %w", wager.SessionID, err)
	}

	wager.GuildID = r.guildID
	return nil
}

const wagerColumns = `id, session_id, guild_id, discord_id, amount, instrument, selection,
	placed_at, multiplier::TEXT, payout, settled_at`

func scanWager(row pgx.Row) (*entities.Wager, error) {
	var wager entities.Wager
	err := row.Scan(
		&wager.ID,
		&wager.SessionID,
		&wager.GuildID,
		&wager.DiscordID,
		&wager.Amount,
		&wager.Instrument,
		&wager.Selection,
		&wager.PlacedAt,
		&wager.Multiplier,
		&wager.Payout,
		&wager.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &wager, nil
}

// GetBySession returns all wagers of a session ordered by placement
func (r *WagerRepository) GetBySession(ctx context.Context, sessionID int64) ([]*entities.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE session_id = $1
		ORDER BY placed_at, id
	`

	rows, err := r.q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers of session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var wagers []*entities.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", err)
	}
	return wagers, nil
}

// GetBySessionAndActor returns an actor's wager in a session, nil if none
func (r *WagerRepository) GetBySessionAndActor(ctx context.Context, sessionID, discordID int64) (*entities.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE session_id = $1 AND discord_id = $2`

	wager, err := scanWager(r.q.QueryRow(ctx, query, sessionID, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager of %d in session %d: %w", discordID, sessionID, err)
	}
	return wager, nil
}

// MarkSettled records the multiplier and payout of a wager that has not been settled yet
func (r *WagerRepository) MarkSettled(ctx context.Context, wagerID int64, multiplier decimal.Decimal, payout int64, now time.Time) (bool, error) {
	query := `
		UPDATE wagers
		SET multiplier = $2::NUMERIC, payout = $3, settled_at = $4
		WHERE id = $1 AND settled_at IS NULL
	`

	tag, err := r.q.Exec(ctx, query, wagerID, multiplier.String(), payout, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark wager %d settled: %w", wagerID, err)
	}
	return tag.RowsAffected() == 1, nil
}

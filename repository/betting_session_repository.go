package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"settlement/database"
	"settlement/domain/entities"

	"github.com/jackc/pgx/v5"
)

// BettingSessionRepository implements the BettingSessionRepository interface
type BettingSessionRepository struct {
	q       Queryable
	guildID int64
}

// NewBettingSessionRepository creates a new betting session repository
func NewBettingSessionRepository(db *database.DB) *BettingSessionRepository {
	return &BettingSessionRepository{q: db.Pool}
}

// NewBettingSessionRepositoryScoped creates a new betting session repository with a guild scope
func NewBettingSessionRepositoryScoped(q Queryable, guildID int64) *BettingSessionRepository {
	return &BettingSessionRepository{
		q:       q,
		guildID: guildID,
	}
}

const sessionColumns = `id, guild_id, channel_id, game_type, status, wager_count, outcome,
	opened_at, closes_at, locked_at, resolved_at, updated_at`

func scanSession(row pgx.Row) (*entities.BettingSession, error) {
	var session entities.BettingSession
	var outcomeJSON []byte
	err := row.Scan(
		&session.ID,
		&session.GuildID,
		&session.ChannelID,
		&session.GameType,
		&session.Status,
		&session.WagerCount,
		&outcomeJSON,
		&session.OpenedAt,
		&session.ClosesAt,
		&session.LockedAt,
		&session.ResolvedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(outcomeJSON) > 0 {
		var outcome entities.SessionOutcome
		if err := json.Unmarshal(outcomeJSON, &outcome); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session outcome: %w", err)
		}
		session.Outcome = &outcome
	}
	return &session, nil
}

func collectSessions(rows pgx.Rows) ([]*entities.BettingSession, error) {
	defer rows.Close()

	var sessions []*entities.BettingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan betting session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate betting sessions: %w", err)
	}
	return sessions, nil
}

// GetOrCreateOpen inserts a session unless the table already has an active one.
// The partial unique index decides the race, the loser reads the winner's row.
func (r *BettingSessionRepository) GetOrCreateOpen(ctx context.Context, channelID int64, gameType entities.GameType, openedAt, closesAt time.Time) (*entities.BettingSession, bool, error) {
	query := `
		INSERT INTO betting_sessions (guild_id, channel_id, game_type, status, opened_at, closes_at)
		VALUES ($1, $2, $3, 'open', $4, $5)
		ON CONFLICT (guild_id, channel_id, game_type) WHERE status IN ('open', 'locked', 'resolving')
		DO NOTHING
		RETURNING ` + sessionColumns

	session, err := scanSession(r.q.QueryRow(ctx, query, r.guildID, channelID, gameType, openedAt, closesAt))
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to open betting session: %w", err)
	}

	session, err = r.GetActive(ctx, channelID, gameType)
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

// GetByID retrieves a session by its ID
func (r *BettingSessionRepository) GetByID(ctx context.Context, id int64) (*entities.BettingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM betting_sessions WHERE id = $1`

	session, err := scanSession(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get betting session %d: %w", id, err)
	}
	return session, nil
}

// GetActive returns the non-terminal session of a table, nil if none
func (r *BettingSessionRepository) GetActive(ctx context.Context, channelID int64, gameType entities.GameType) (*entities.BettingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM betting_sessions
		WHERE guild_id = $1 AND channel_id = $2 AND game_type = $3
		  AND status IN ('open', 'locked', 'resolving')
	`

	session, err := scanSession(r.q.QueryRow(ctx, query, r.guildID, channelID, gameType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active %s session in channel %d: %w", gameType, channelID, err)
	}
	return session, nil
}

// CloseWindow locks an open session, or expires it when nobody joined
func (r *BettingSessionRepository) CloseWindow(ctx context.Context, id int64, now time.Time) (*entities.BettingSession, error) {
	query := `
		UPDATE betting_sessions
		SET status = CASE WHEN wager_count > 0 THEN 'locked' ELSE 'expired' END,
			locked_at = $2,
			resolved_at = CASE WHEN wager_count > 0 THEN NULL ELSE $2 END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING ` + sessionColumns

	session, err := scanSession(r.q.QueryRow(ctx, query, id, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close betting session %d: %w", id, err)
	}
	return session, nil
}

// BeginResolving stores the drawn outcome and moves a locked session to resolving
func (r *BettingSessionRepository) BeginResolving(ctx context.Context, id int64, outcome entities.SessionOutcome) (bool, error) {
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session outcome: %w", err)
	}

	query := `
		UPDATE betting_sessions
		SET status = 'resolving', outcome = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'locked'
	`

	tag, err := r.q.Exec(ctx, query, id, outcomeJSON)
	if err != nil {
		return false, fmt.Errorf("failed to begin resolving session %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkResolved moves a resolving session to resolved
func (r *BettingSessionRepository) MarkResolved(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE betting_sessions
		SET status = 'resolved', resolved_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'resolving'
	`

	tag, err := r.q.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark session %d resolved: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListDue returns sessions of every guild the session worker has to look at
func (r *BettingSessionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.BettingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM betting_sessions
		WHERE (status = 'open' AND closes_at <= $1)
		   OR status IN ('locked', 'resolving')
		ORDER BY closes_at
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due betting sessions: %w", err)
	}
	return collectSessions(rows)
}

// ListRecent returns the latest sessions of a table
func (r *BettingSessionRepository) ListRecent(ctx context.Context, channelID int64, limit int) ([]*entities.BettingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM betting_sessions
		WHERE guild_id = $1 AND channel_id = $2
		ORDER BY opened_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, r.guildID, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent sessions in channel %d: %w", channelID, err)
	}
	return collectSessions(rows)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement/database"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepository implements the IdempotencyRepository interface.
// Keys already carry their guild, so the table is not guild scoped.
type IdempotencyRepository struct {
	q Queryable
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *database.DB) *IdempotencyRepository {
	return &IdempotencyRepository{q: db.Pool}
}

// NewIdempotencyRepositoryWithQueryable creates an idempotency repository on any Queryable
func NewIdempotencyRepositoryWithQueryable(q Queryable) *IdempotencyRepository {
	return &IdempotencyRepository{q: q}
}

// Claim records the key unless an unexpired claim already holds it.
// An expired claim is taken over in place.
func (r *IdempotencyRepository) Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (key, expires_at, created_at)
		VALUES ($1, $3, $2)
		ON CONFLICT (key) DO UPDATE
		SET expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
		WHERE idempotency_keys.expires_at <= $2
		RETURNING key
	`

	var claimed string
	err := r.q.QueryRow(ctx, query, key, now, expiresAt).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key %s: %w", key, err)
	}
	return true, nil
}

// Release drops a claim so the event can be processed again
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to release idempotency key %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes keys that expired before now
func (r *IdempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

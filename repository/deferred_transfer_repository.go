package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement/database"
	"settlement/domain/entities"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DeferredTransferRepository implements the DeferredTransferRepository interface
type DeferredTransferRepository struct {
	q       Queryable
	guildID int64
}

// NewDeferredTransferRepository creates a new deferred transfer repository
func NewDeferredTransferRepository(db *database.DB) *DeferredTransferRepository {
	return &DeferredTransferRepository{q: db.Pool}
}

// NewDeferredTransferRepositoryScoped creates a new deferred transfer repository with a guild scope
func NewDeferredTransferRepositoryScoped(q Queryable, guildID int64) *DeferredTransferRepository {
	return &DeferredTransferRepository{
		q:       q,
		guildID: guildID,
	}
}

const transferColumns = `id, reference, guild_id, kind, sender_id, sender_instrument, receiver_id,
	receiver_instrument, amount, fee, payout, reason, release_at, status, settled_at,
	released_at, cancelled_at, created_at`

func scanTransfer(row pgx.Row) (*entities.DeferredTransfer, error) {
	var t entities.DeferredTransfer
	err := row.Scan(
		&t.ID,
		&t.Reference,
		&t.GuildID,
		&t.Kind,
		&t.SenderID,
		&t.SenderInstrument,
		&t.ReceiverID,
		&t.ReceiverInstrument,
		&t.Amount,
		&t.Fee,
		&t.Payout,
		&t.Reason,
		&t.ReleaseAt,
		&t.Status,
		&t.SettledAt,
		&t.ReleasedAt,
		&t.CancelledAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTransfers(rows pgx.Rows) ([]*entities.DeferredTransfer, error) {
	defer rows.Close()

	var transfers []*entities.DeferredTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deferred transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deferred transfers: %w", err)
	}
	return transfers, nil
}

// Create inserts a pending transfer
func (r *DeferredTransferRepository) Create(ctx context.Context, transfer *entities.DeferredTransfer) error {
	query := `
		INSERT INTO deferred_transfers (
			reference, guild_id, kind, sender_id, sender_instrument, receiver_id,
			receiver_instrument, amount, fee, payout, reason, release_at, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending')
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		transfer.Reference,
		r.guildID,
		transfer.Kind,
		transfer.SenderID,
		transfer.SenderInstrument,
		transfer.ReceiverID,
		transfer.ReceiverInstrument,
		transfer.Amount,
		transfer.Fee,
		transfer.Payout,
		transfer.Reason,
		transfer.ReleaseAt,
	).Scan(&transfer.ID, &transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deferred transfer %s: %w", transfer.Reference, err)
	}

	transfer.GuildID = r.guildID
	transfer.Status = entities.TransferStatusPending
	return nil
}

// GetByID retrieves a transfer by its ID
func (r *DeferredTransferRepository) GetByID(ctx context.Context, id int64) (*entities.DeferredTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM deferred_transfers WHERE id = $1`

	t, err := scanTransfer(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deferred transfer %d: %w", id, err)
	}
	return t, nil
}

// GetByReference retrieves a transfer by its reference
func (r *DeferredTransferRepository) GetByReference(ctx context.Context, reference uuid.UUID) (*entities.DeferredTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM deferred_transfers WHERE reference = $1`

	t, err := scanTransfer(r.q.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deferred transfer %s: %w", reference, err)
	}
	return t, nil
}

// ListDue returns matured pending transfers of every guild
func (r *DeferredTransferRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.DeferredTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM deferred_transfers
		WHERE status = 'pending' AND release_at <= $1
		ORDER BY release_at, id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due deferred transfers: %w", err)
	}
	return collectTransfers(rows)
}

// ListUnsettled returns flipped transfers of every guild whose money has not moved yet
func (r *DeferredTransferRepository) ListUnsettled(ctx context.Context, limit int) ([]*entities.DeferredTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM deferred_transfers
		WHERE status IN ('released', 'cancelled') AND settled_at IS NULL
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled deferred transfers: %w", err)
	}
	return collectTransfers(rows)
}

// ListPendingBySender returns an actor's pending transfers in the current guild
func (r *DeferredTransferRepository) ListPendingBySender(ctx context.Context, senderID int64) ([]*entities.DeferredTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM deferred_transfers
		WHERE guild_id = $1 AND sender_id = $2 AND status = 'pending'
		ORDER BY release_at, id
	`

	rows, err := r.q.Query(ctx, query, r.guildID, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers of %d: %w", senderID, err)
	}
	return collectTransfers(rows)
}

// Transition flips the status of a transfer only if it is still in the from status
func (r *DeferredTransferRepository) Transition(ctx context.Context, id int64, from, to entities.TransferStatus, now time.Time) (bool, error) {
	query := `
		UPDATE deferred_transfers
		SET status = $3,
			released_at = CASE WHEN $3 = 'released' THEN $4 ELSE released_at END,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
	`

	tag, err := r.q.Exec(ctx, query, id, string(from), string(to), now)
	if err != nil {
		return false, fmt.Errorf("failed to move deferred transfer %d from %s to %s: %w", id, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSettled records that the credit or refund of a flipped transfer landed
func (r *DeferredTransferRepository) MarkSettled(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE deferred_transfers
		SET settled_at = $2
		WHERE id = $1 AND status <> 'pending' AND settled_at IS NULL
	`

	tag, err := r.q.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark deferred transfer %d settled: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const transferColumns = `
	id, sender_id, recipient_id, amount, status, message,
	created_at, expires_at, claimed_at
`

func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, t *Transfer) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()

	query := `
		INSERT INTO gift_transfers (
			id, sender_id, recipient_id, amount, status, message,
			created_at, expires_at, claimed_at
		) VALUES (
			:id, :sender_id, :recipient_id, :amount, :status, :message,
			:created_at, :expires_at, :claimed_at
		)
	`
	if _, err := tx.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("transfer repository create: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	var t Transfer
	err := r.db.GetContext(ctx, &t,
		`SELECT `+transferColumns+` FROM gift_transfers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetForUpdateTx locks the transfer row so claim and expiry cannot race
// each other over the same escrow.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Transfer, error) {
	var t Transfer
	err := tx.GetContext(ctx, &t,
		`SELECT `+transferColumns+` FROM gift_transfers WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) MarkClaimedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE gift_transfers SET status = $2, claimed_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, StatusClaimed, StatusUnclaimed)
	if err != nil {
		return fmt.Errorf("transfer repository mark claimed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

func (r *Repository) MarkExpiredTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE gift_transfers SET status = $2
		WHERE id = $1 AND status = $3
	`, id, StatusExpired, StatusUnclaimed)
	if err != nil {
		return fmt.Errorf("transfer repository mark expired: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Concurrently claimed or already swept.
		return ErrBadState
	}
	return nil
}

// SelectStaleForUpdateTx picks a batch of overdue unclaimed transfers
// with their rows locked. SKIP LOCKED lets concurrent sweepers and
// in-flight claims proceed without blocking each other.
func (r *Repository) SelectStaleForUpdateTx(ctx context.Context, tx *sqlx.Tx, now time.Time, limit int) ([]Transfer, error) {
	transfers := []Transfer{}
	err := tx.SelectContext(ctx, &transfers, `
		SELECT `+transferColumns+`
		FROM gift_transfers
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, StatusUnclaimed, now, limit)
	if err != nil {
		return nil, err
	}
	return transfers, nil
}

// ListForUser returns transfers the user sent or is meant to receive,
// newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transfer, error) {
	transfers := []Transfer{}
	err := r.db.SelectContext(ctx, &transfers, `
		SELECT `+transferColumns+`
		FROM gift_transfers
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *Repository) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM gift_transfers WHERE sender_id = $1 OR recipient_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

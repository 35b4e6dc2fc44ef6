package bill

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository provides append-only access to the bill trail.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx appends an entry within the caller's transaction. The caller owns
// commit/rollback; an entry must never land without its balance mutation.
func (r *Repository) InsertTx(ctx context.Context, tx *sqlx.Tx, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bill_entries (id, user_id, entry_type, coin_delta, credit_delta, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.UserID, string(e.Type), e.CoinDelta, e.CreditDelta, e.Description, e.ReferenceID, e.CreatedAt)
	return err
}

// ListByUser returns the user's bill trail, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Entry, error) {
	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, entry_type, coin_delta, credit_delta, description, reference_id, created_at
		FROM bill_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return entries, err
}

// CountByUser returns the total number of entries for pagination metadata.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bill_entries WHERE user_id = $1`, userID)
	return total, err
}

// SumDeltas returns the signed sums of all entries for a user. Accounts start
// at zero, so the sums must equal the current balances.
func (r *Repository) SumDeltas(ctx context.Context, userID uuid.UUID) (coinSum, creditSum int64, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(coin_delta), 0), COALESCE(SUM(credit_delta), 0)
		FROM bill_entries
		WHERE user_id = $1
	`, userID)
	err = row.Scan(&coinSum, &creditSum)
	return coinSum, creditSum, err
}

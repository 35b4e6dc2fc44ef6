package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/loveline/loveline-api/internal/domain/bill"
)

// Repository is the authoritative store for account balances. ApplyDelta is
// the only mutation entry point; it always runs inside the caller's
// transaction together with the bill entry insert.
type Repository struct {
	db    *sqlx.DB
	bills *bill.Repository
}

func NewRepository(db *sqlx.DB, bills *bill.Repository) *Repository {
	return &Repository{db: db, bills: bills}
}

// EnsureAccount provisions a zeroed account row if none exists.
func (r *Repository) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_accounts (user_id, gold_coin, translation_credits, vip_level, vip_character, lifetime_spend, daily_match_quota)
		VALUES ($1, 0, 0, 0, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, DailyMatchQuotaFree)
	return err
}

// GetBalance returns the account, provisioning it on first read.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if err := r.EnsureAccount(ctx, userID); err != nil {
		return nil, err
	}

	var b Balance
	err := r.db.GetContext(ctx, &b, `
		SELECT user_id, gold_coin, translation_credits, vip_level, vip_expiration, vip_character, lifetime_spend, daily_match_quota, updated_at
		FROM user_accounts WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// lockAccount takes a row lock on the account within tx, provisioning the row
// first so new users can receive funds. Concurrent mutations of the same user
// serialize here.
func (r *Repository) lockAccount(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Balance, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_accounts (user_id, gold_coin, translation_credits, vip_level, vip_character, lifetime_spend, daily_match_quota)
		VALUES ($1, 0, 0, 0, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, DailyMatchQuotaFree); err != nil {
		return nil, err
	}

	var b Balance
	err := tx.GetContext(ctx, &b, `
		SELECT user_id, gold_coin, translation_credits, vip_level, vip_expiration, vip_character, lifetime_spend, daily_match_quota, updated_at
		FROM user_accounts WHERE user_id = $1 FOR UPDATE
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ApplyDelta locks the account row, applies the delta with the invariant
// check, persists the new balance and appends the bill entry — all within the
// caller's transaction. The insufficient-balance check happens under the lock,
// never as a pre-check against a stale read.
func (r *Repository) ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta Delta, entry *bill.Entry) (*Balance, error) {
	b, err := r.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err := b.Apply(delta, time.Now()); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_accounts
		SET gold_coin = $2, translation_credits = $3, vip_level = $4, vip_expiration = $5,
		    vip_character = $6, lifetime_spend = $7, daily_match_quota = $8, updated_at = now()
		WHERE user_id = $1
	`, userID, b.GoldCoin, b.TranslationCredits, int(b.VIPLevel), b.VIPExpiration, b.VIPCharacter, b.LifetimeSpend, b.DailyMatchQuota)
	if err != nil {
		return nil, err
	}

	if entry != nil {
		entry.UserID = userID
		if err := r.bills.InsertTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ResetDailyQuotas restores every account's daily match quota to its tier
// value. Called by the external daily reset hook.
func (r *Repository) ResetDailyQuotas(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_accounts
		SET daily_match_quota = CASE
			WHEN vip_level = $1 AND vip_expiration > now() THEN $2
			WHEN vip_level = $3 AND vip_expiration > now() THEN $4
			ELSE $5
		END,
		updated_at = now()
	`, int(VIPLevelVIP), DailyMatchQuotaVIP, int(VIPLevelSVIP), DailyMatchQuotaSVIP, DailyMatchQuotaFree)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

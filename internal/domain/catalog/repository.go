package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Catalog is the read-only price/quantity lookup surface the economy engine
// consumes. The catalog itself is owned elsewhere; nothing here mutates it.
type Catalog interface {
	GetGoods(ctx context.Context, id string) (*Goods, error)
	GetCoinBundle(ctx context.Context, id string) (*CoinBundle, error)
	GetCreditBundle(ctx context.Context, id string) (*CreditBundle, error)
	GetVIPTier(ctx context.Context, level string) (*VIPTier, error)
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetGoods(ctx context.Context, id string) (*Goods, error) {
	var g Goods
	err := r.db.GetContext(ctx, &g, `
		SELECT id, name, price_coins, active FROM catalog_goods WHERE id = $1 AND active
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repository) GetCoinBundle(ctx context.Context, id string) (*CoinBundle, error) {
	var b CoinBundle
	err := r.db.GetContext(ctx, &b, `
		SELECT id, coins, price, currency, active FROM catalog_coin_bundles WHERE id = $1 AND active
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) GetCreditBundle(ctx context.Context, id string) (*CreditBundle, error) {
	var b CreditBundle
	err := r.db.GetContext(ctx, &b, `
		SELECT id, credits, price, currency, active FROM catalog_credit_bundles WHERE id = $1 AND active
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) GetVIPTier(ctx context.Context, level string) (*VIPTier, error) {
	var t VIPTier
	err := r.db.GetContext(ctx, &t, `
		SELECT level, monthly_price, currency, active FROM catalog_vip_tiers WHERE level = $1 AND active
	`, level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

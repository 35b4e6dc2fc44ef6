package order

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

const orderColumns = `
	id, order_no, buyer_id, family, status, product_id, quantity,
	fiat_amount, currency, coin_price, grant_amount, recipient_id,
	ship_name, ship_phone, ship_address, gateway_txn_id,
	created_at, settled_at
`

// Create inserts a new order. The caller sets Family, pricing and any
// recipient/shipping fields; ID, OrderNo and CreatedAt are filled here.
func (r *Repository) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	o.OrderNo = NewOrderNo(time.Now())
	o.CreatedAt = time.Now()

	query := `
		INSERT INTO purchase_orders (
			id, order_no, buyer_id, family, status, product_id, quantity,
			fiat_amount, currency, coin_price, grant_amount, recipient_id,
			ship_name, ship_phone, ship_address, gateway_txn_id,
			created_at, settled_at
		) VALUES (
			:id, :order_no, :buyer_id, :family, :status, :product_id, :quantity,
			:fiat_amount, :currency, :coin_price, :grant_amount, :recipient_id,
			:ship_name, :ship_phone, :ship_address, :gateway_txn_id,
			:created_at, :settled_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("order repository create: %w", err)
	}
	return nil
}

// CreateTx inserts an order inside an existing transaction, used when
// the order is settled at creation time (goods checkout).
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, o *Order) error {
	o.ID = uuid.New()
	o.OrderNo = NewOrderNo(time.Now())
	o.CreatedAt = time.Now()

	query := `
		INSERT INTO purchase_orders (
			id, order_no, buyer_id, family, status, product_id, quantity,
			fiat_amount, currency, coin_price, grant_amount, recipient_id,
			ship_name, ship_phone, ship_address, gateway_txn_id,
			created_at, settled_at
		) VALUES (
			:id, :order_no, :buyer_id, :family, :status, :product_id, :quantity,
			:fiat_amount, :currency, :coin_price, :grant_amount, :recipient_id,
			:ship_name, :ship_phone, :ship_address, :gateway_txn_id,
			:created_at, :settled_at
		)
	`
	if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("order repository create tx: %w", err)
	}
	return nil
}

func (r *Repository) GetByOrderNo(ctx context.Context, orderNo string) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE order_no = $1`, orderNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdateTx reloads an order with a row lock so settlement can
// re-check status after payment verification without racing a
// concurrent completion of the same order.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, orderNo string) (*Order, error) {
	var o Order
	err := tx.GetContext(ctx, &o,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE order_no = $1 FOR UPDATE`, orderNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkSettledTx transitions a pending order to settled and records the
// gateway transaction that paid for it.
func (r *Repository) MarkSettledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, gatewayTxnID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $2, gateway_txn_id = $3, settled_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, StatusSettled, gatewayTxnID, StatusPending)
	if err != nil {
		return fmt.Errorf("order repository mark settled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBadState
	}
	return nil
}

func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchase_orders SET status = $2 WHERE id = $1 AND status = $3
	`, id, StatusCancelled, StatusPending)
	if err != nil {
		return fmt.Errorf("order repository mark cancelled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBadState
	}
	return nil
}

// ListByBuyer returns a buyer's orders, newest first, optionally
// filtered to one family.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, family Family, limit, offset int) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE buyer_id = $1`
	args := []interface{}{buyerID}
	if family != "" {
		query += ` AND family = $2`
		args = append(args, family)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	orders := []Order{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) CountByBuyer(ctx context.Context, buyerID uuid.UUID, family Family) (int, error) {
	query := `SELECT COUNT(*) FROM purchase_orders WHERE buyer_id = $1`
	args := []interface{}{buyerID}
	if family != "" {
		query += ` AND family = $2`
		args = append(args, family)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

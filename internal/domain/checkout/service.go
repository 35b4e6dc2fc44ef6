package checkout

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/loveline/loveline-api/internal/domain/bill"
	"github.com/loveline/loveline-api/internal/domain/catalog"
	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/domain/order"
	"github.com/loveline/loveline-api/internal/domain/user"
	"github.com/loveline/loveline-api/internal/pkg/database"
	"github.com/loveline/loveline-api/internal/pkg/metrics"
)

// Orders is the order persistence surface checkout needs. Goods orders
// are settled at creation, so the insert happens inside the payment
// transaction.
type Orders interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, o *order.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, family order.Family, limit, offset int) ([]order.Order, error)
	CountByBuyer(ctx context.Context, buyerID uuid.UUID, family order.Family) (int, error)
}

type Accounts interface {
	ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta ledger.Delta, entry *bill.Entry) (*ledger.Balance, error)
}

// Shipping is the destination for a physical goods order.
type Shipping struct {
	Name    string
	Phone   string
	Address string
}

func (s Shipping) complete() bool {
	return s.Name != "" && s.Phone != "" && s.Address != ""
}

// Purchase is a goods checkout request. RecipientID, when set to
// another user, turns the order into a gift.
type Purchase struct {
	GoodsID     string
	Quantity    int
	RecipientID uuid.NullUUID
	Shipping    Shipping
}

// Service settles goods orders against the gold-coin wallet.
type Service struct {
	orders   Orders
	accounts Accounts
	catalog  catalog.Catalog
	users    user.Repository
	runner   database.Runner
	metrics  *metrics.Metrics
}

func NewService(orders Orders, accounts Accounts, cat catalog.Catalog, users user.Repository, runner database.Runner, m *metrics.Metrics) *Service {
	return &Service{orders: orders, accounts: accounts, catalog: cat, users: users, runner: runner, metrics: m}
}

// PlaceOrder prices the goods, validates the recipient and shipping
// destination, then debits the wallet and records a settled order in
// one transaction. Insufficient balance is detected under the row lock,
// never by a pre-check.
func (s *Service) PlaceOrder(ctx context.Context, buyerID uuid.UUID, p Purchase) (*order.Order, error) {
	if p.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	goods, err := s.catalog.GetGoods(ctx, p.GoodsID)
	if err != nil {
		return nil, err
	}
	total := goods.PriceCoins * int64(p.Quantity)

	isGift := p.RecipientID.Valid && p.RecipientID.UUID != buyerID
	if isGift {
		exists, err := s.users.Exists(ctx, p.RecipientID.UUID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrRecipientNotFound
		}
		friends, err := s.users.IsFriend(ctx, buyerID, p.RecipientID.UUID)
		if err != nil {
			return nil, err
		}
		if !friends {
			return nil, ErrNotFriends
		}
	}

	ship := p.Shipping
	if !isGift && !ship.complete() {
		// Fall back to the buyer's stored destination.
		u, err := s.users.GetByID(ctx, buyerID)
		if err != nil {
			return nil, err
		}
		if !u.HasShippingInfo() {
			return nil, ErrMissingShippingInfo
		}
		ship = Shipping{Name: u.ShippingName, Phone: u.ShippingPhone, Address: u.ShippingAddress}
	}

	o := &order.Order{
		BuyerID:     buyerID,
		Family:      order.FamilyGoods,
		Status:      order.StatusSettled,
		ProductID:   goods.ID,
		Quantity:    p.Quantity,
		CoinPrice:   total,
		RecipientID: p.RecipientID,
	}
	if ship.complete() {
		o.ShipName = sql.NullString{String: ship.Name, Valid: true}
		o.ShipPhone = sql.NullString{String: ship.Phone, Valid: true}
		o.ShipAddress = sql.NullString{String: ship.Address, Valid: true}
	}

	err = s.runner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.orders.CreateTx(ctx, tx, o); err != nil {
			return err
		}
		entry := &bill.Entry{
			Type:        bill.EntryTypeSpend,
			CoinDelta:   -total,
			Description: fmt.Sprintf("%s x%d", goods.Name, p.Quantity),
			ReferenceID: o.OrderNo,
		}
		_, err := s.accounts.ApplyDelta(ctx, tx, buyerID, ledger.Delta{GoldCoin: -total, LifetimeSpend: total}, entry)
		return err
	})
	if err != nil {
		s.metrics.ObserveCheckout("failed")
		return nil, err
	}

	o.SettledAt = sql.NullTime{Time: o.CreatedAt, Valid: true}
	s.metrics.ObserveCheckout("settled")
	s.metrics.ObserveBillEntry()
	log.Info().
		Str("order_no", o.OrderNo).
		Str("buyer_id", buyerID.String()).
		Str("goods_id", goods.ID).
		Int64("coins", total).
		Bool("gift", isGift).
		Msg("goods order settled")
	return o, nil
}

// GetOrder returns one of the buyer's orders by order number.
func (s *Service) GetOrder(ctx context.Context, buyerID uuid.UUID, orderNo string) (*order.Order, error) {
	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

// ListOrders returns the buyer's order history, optionally filtered to
// one family.
func (s *Service) ListOrders(ctx context.Context, buyerID uuid.UUID, family order.Family, limit, offset int) ([]order.Order, int, error) {
	if family != "" && !family.Valid() {
		return nil, 0, fmt.Errorf("invalid family %q", family)
	}
	orders, err := s.orders.ListByBuyer(ctx, buyerID, family, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orders.CountByBuyer(ctx, buyerID, family)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

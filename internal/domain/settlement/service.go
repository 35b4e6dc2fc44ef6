package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/loveline/loveline-api/internal/domain/bill"
	"github.com/loveline/loveline-api/internal/domain/catalog"
	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/domain/order"
	"github.com/loveline/loveline-api/internal/pkg/database"
	"github.com/loveline/loveline-api/internal/pkg/metrics"
	"github.com/loveline/loveline-api/internal/pkg/paygate"
)

// Orders is the order persistence surface the engine needs.
type Orders interface {
	Create(ctx context.Context, o *order.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, orderNo string) (*order.Order, error)
	MarkSettledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, gatewayTxnID string) error
}

// Accounts applies balance deltas with their bill entries in one
// transaction.
type Accounts interface {
	ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta ledger.Delta, entry *bill.Entry) (*ledger.Balance, error)
}

// Verifier checks a gateway transaction against the expected charge.
type Verifier interface {
	Verify(ctx context.Context, txnID string, expectedAmount float64, expectedCurrency string) (*paygate.VerificationResult, error)
}

// Selection is what the buyer asked to purchase.
type Selection struct {
	Family    order.Family
	ProductID string
	Quantity  int
}

// strategy prices a selection and converts a verified order into its
// balance effect. One strategy per money family; the engine itself is
// family-agnostic.
type strategy interface {
	quote(ctx context.Context, c catalog.Catalog, buyerID uuid.UUID, sel Selection) (*order.Order, error)
	settle(o *order.Order) (ledger.Delta, *bill.Entry, error)
}

// Service is the settlement engine for gateway-paid purchases: VIP
// membership, coin bundles and translation-credit bundles.
type Service struct {
	orders     Orders
	accounts   Accounts
	catalog    catalog.Catalog
	verifier   Verifier
	runner     database.Runner
	metrics    *metrics.Metrics
	currency   string
	strategies map[order.Family]strategy
}

func NewService(orders Orders, accounts Accounts, cat catalog.Catalog, verifier Verifier, runner database.Runner, m *metrics.Metrics, currency string) *Service {
	return &Service{
		orders:   orders,
		accounts: accounts,
		catalog:  cat,
		verifier: verifier,
		runner:   runner,
		metrics:  m,
		currency: currency,
		strategies: map[order.Family]strategy{
			order.FamilyVIP:    vipStrategy{},
			order.FamilyCoin:   coinStrategy{},
			order.FamilyCredit: creditStrategy{},
		},
	}
}

// InitializePayment prices the selection from the catalog and records a
// pending order. The buyer pays the quoted amount at the gateway and
// then calls CompletePayment with the gateway transaction id.
func (s *Service) InitializePayment(ctx context.Context, buyerID uuid.UUID, sel Selection) (*order.Order, error) {
	strat, ok := s.strategies[sel.Family]
	if !ok {
		return nil, ErrUnsupportedFamily
	}

	o, err := strat.quote(ctx, s.catalog, buyerID, sel)
	if err != nil {
		return nil, err
	}
	o.Status = order.StatusPending
	if o.Currency == "" {
		o.Currency = s.currency
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_no", o.OrderNo).
		Str("buyer_id", buyerID.String()).
		Str("family", string(o.Family)).
		Float64("amount", o.FiatAmount).
		Str("currency", o.Currency).
		Msg("payment initialized")
	return o, nil
}

// CompletePayment verifies the gateway transaction and settles the
// order: balance delta, bill entry and status flip happen in one
// database transaction. Completing an already settled order returns
// order.ErrAlreadySettled without touching the balance.
func (s *Service) CompletePayment(ctx context.Context, buyerID uuid.UUID, orderNo string, family order.Family, gatewayTxnID string) (*ledger.Balance, error) {
	start := time.Now()

	o, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		// Do not reveal other buyers' order numbers.
		return nil, order.ErrOrderNotFound
	}
	if o.Family != family {
		return nil, ErrFamilyMismatch
	}
	switch o.Status {
	case order.StatusSettled:
		return nil, order.ErrAlreadySettled
	case order.StatusCancelled:
		return nil, order.ErrBadState
	}
	// Goods orders settle from the wallet at checkout and never pass
	// through the gateway.
	strat, ok := s.strategies[o.Family]
	if !ok {
		return nil, ErrUnsupportedFamily
	}

	// Verify before opening the transaction: the gateway call is slow and
	// must not hold row locks.
	res, err := s.verifier.Verify(ctx, gatewayTxnID, o.FiatAmount, o.Currency)
	if err != nil {
		s.metrics.ObserveVerification("error")
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if !res.Verified {
		s.metrics.ObserveVerification("rejected")
		s.metrics.ObserveSettlement(string(o.Family), "rejected")
		log.Warn().
			Str("order_no", orderNo).
			Str("txn_id", gatewayTxnID).
			Str("reason", res.Reason).
			Msg("payment verification rejected")
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotVerified, res.Reason)
	}
	s.metrics.ObserveVerification("verified")

	var balance *ledger.Balance
	err = s.runner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.orders.GetForUpdateTx(ctx, tx, orderNo)
		if err != nil {
			return err
		}
		// Re-check under the lock: a concurrent completion may have won.
		switch locked.Status {
		case order.StatusSettled:
			return order.ErrAlreadySettled
		case order.StatusCancelled:
			return order.ErrBadState
		}

		delta, entry, err := strat.settle(locked)
		if err != nil {
			return err
		}
		balance, err = s.accounts.ApplyDelta(ctx, tx, locked.BuyerID, delta, entry)
		if err != nil {
			return err
		}
		return s.orders.MarkSettledTx(ctx, tx, locked.ID, gatewayTxnID)
	})
	if err != nil {
		if !errors.Is(err, order.ErrAlreadySettled) {
			s.metrics.ObserveSettlement(string(o.Family), "failed")
		}
		return nil, err
	}

	s.metrics.ObserveSettlement(string(o.Family), "settled")
	s.metrics.ObserveBillEntry()
	s.metrics.ObserveSettlementDuration(float64(time.Since(start).Milliseconds()))
	log.Info().
		Str("order_no", orderNo).
		Str("buyer_id", buyerID.String()).
		Str("family", string(o.Family)).
		Str("txn_id", gatewayTxnID).
		Msg("order settled")
	return balance, nil
}

// vipStrategy sells membership months.
type vipStrategy struct{}

func (vipStrategy) quote(ctx context.Context, c catalog.Catalog, buyerID uuid.UUID, sel Selection) (*order.Order, error) {
	if _, ok := ledger.ParseVIPLevel(sel.ProductID); !ok {
		return nil, catalog.ErrProductNotFound
	}
	tier, err := c.GetVIPTier(ctx, sel.ProductID)
	if err != nil {
		return nil, err
	}
	months := sel.Quantity
	if months < 1 {
		months = 1
	}
	return &order.Order{
		BuyerID:    buyerID,
		Family:     order.FamilyVIP,
		ProductID:  tier.Level,
		Quantity:   months,
		FiatAmount: tier.MonthlyPrice * float64(months),
		Currency:   tier.Currency,
	}, nil
}

func (vipStrategy) settle(o *order.Order) (ledger.Delta, *bill.Entry, error) {
	level, ok := ledger.ParseVIPLevel(o.ProductID)
	if !ok {
		return ledger.Delta{}, nil, catalog.ErrProductNotFound
	}
	delta := ledger.Delta{VIP: &ledger.VIPChange{Level: level, Months: o.Quantity}}
	entry := &bill.Entry{
		Type:        bill.EntryTypeVIP,
		Description: fmt.Sprintf("%s membership, %d month(s)", level, o.Quantity),
		ReferenceID: o.OrderNo,
	}
	return delta, entry, nil
}

// coinStrategy sells gold-coin bundles. The granted coin count is
// frozen on the order at quote time.
type coinStrategy struct{}

func (coinStrategy) quote(ctx context.Context, c catalog.Catalog, buyerID uuid.UUID, sel Selection) (*order.Order, error) {
	bundle, err := c.GetCoinBundle(ctx, sel.ProductID)
	if err != nil {
		return nil, err
	}
	return &order.Order{
		BuyerID:     buyerID,
		Family:      order.FamilyCoin,
		ProductID:   bundle.ID,
		Quantity:    1,
		FiatAmount:  bundle.Price,
		Currency:    bundle.Currency,
		GrantAmount: bundle.Coins,
	}, nil
}

func (coinStrategy) settle(o *order.Order) (ledger.Delta, *bill.Entry, error) {
	delta := ledger.Delta{GoldCoin: o.GrantAmount}
	entry := &bill.Entry{
		Type:        bill.EntryTypeTopUp,
		CoinDelta:   o.GrantAmount,
		Description: fmt.Sprintf("Purchased %d gold coins", o.GrantAmount),
		ReferenceID: o.OrderNo,
	}
	return delta, entry, nil
}

// creditStrategy sells translation-credit bundles.
type creditStrategy struct{}

func (creditStrategy) quote(ctx context.Context, c catalog.Catalog, buyerID uuid.UUID, sel Selection) (*order.Order, error) {
	bundle, err := c.GetCreditBundle(ctx, sel.ProductID)
	if err != nil {
		return nil, err
	}
	return &order.Order{
		BuyerID:     buyerID,
		Family:      order.FamilyCredit,
		ProductID:   bundle.ID,
		Quantity:    1,
		FiatAmount:  bundle.Price,
		Currency:    bundle.Currency,
		GrantAmount: bundle.Credits,
	}, nil
}

func (creditStrategy) settle(o *order.Order) (ledger.Delta, *bill.Entry, error) {
	delta := ledger.Delta{Credits: o.GrantAmount}
	entry := &bill.Entry{
		Type:        bill.EntryTypeTopUp,
		CreditDelta: o.GrantAmount,
		Description: fmt.Sprintf("Purchased %d translation credits", o.GrantAmount),
		ReferenceID: o.OrderNo,
	}
	return delta, entry, nil
}

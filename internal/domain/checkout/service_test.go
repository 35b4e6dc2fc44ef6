package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/loveline/loveline-api/internal/domain/bill"
	"github.com/loveline/loveline-api/internal/domain/catalog"
	"github.com/loveline/loveline-api/internal/domain/checkout"
	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/domain/order"
	"github.com/loveline/loveline-api/internal/domain/user"
)

type fakeOrders struct {
	mu     sync.Mutex
	orders []order.Order
}

func (f *fakeOrders) CreateTx(ctx context.Context, tx *sqlx.Tx, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = uuid.New()
	o.OrderNo = order.NewOrderNo(time.Now())
	o.CreatedAt = time.Now()
	f.orders = append(f.orders, *o)
	return nil
}

func (f *fakeOrders) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OrderNo == orderNo {
			cp := o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (f *fakeOrders) ListByBuyer(ctx context.Context, buyerID uuid.UUID, family order.Family, limit, offset int) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID && (family == "" || o.Family == family) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) CountByBuyer(ctx context.Context, buyerID uuid.UUID, family order.Family) (int, error) {
	orders, _ := f.ListByBuyer(ctx, buyerID, family, 0, 0)
	return len(orders), nil
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*ledger.Balance
	entries  []bill.Entry
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[uuid.UUID]*ledger.Balance{}}
}

func (f *fakeAccounts) seed(userID uuid.UUID, coins int64) {
	f.accounts[userID] = &ledger.Balance{UserID: userID, GoldCoin: coins}
}

func (f *fakeAccounts) ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta ledger.Delta, entry *bill.Entry) (*ledger.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.accounts[userID]
	if !ok {
		b = &ledger.Balance{UserID: userID}
		f.accounts[userID] = b
	}
	if err := b.Apply(delta, time.Now()); err != nil {
		return nil, err
	}
	if entry != nil {
		entry.UserID = userID
		f.entries = append(f.entries, *entry)
	}
	cp := *b
	return &cp, nil
}

type fakeCatalog struct {
	goods map[string]catalog.Goods
}

func (f *fakeCatalog) GetGoods(ctx context.Context, id string) (*catalog.Goods, error) {
	if g, ok := f.goods[id]; ok {
		return &g, nil
	}
	return nil, catalog.ErrProductNotFound
}

func (f *fakeCatalog) GetCoinBundle(ctx context.Context, id string) (*catalog.CoinBundle, error) {
	return nil, catalog.ErrProductNotFound
}

func (f *fakeCatalog) GetCreditBundle(ctx context.Context, id string) (*catalog.CreditBundle, error) {
	return nil, catalog.ErrProductNotFound
}

func (f *fakeCatalog) GetVIPTier(ctx context.Context, level string) (*catalog.VIPTier, error) {
	return nil, catalog.ErrProductNotFound
}

type fakeUsers struct {
	users   map[uuid.UUID]*user.User
	friends map[[2]uuid.UUID]bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uuid.UUID]*user.User{}, friends: map[[2]uuid.UUID]bool{}}
}

func (f *fakeUsers) add(u *user.User) {
	f.users[u.ID] = u
}

func (f *fakeUsers) befriend(a, b uuid.UUID) {
	f.friends[[2]uuid.UUID{a, b}] = true
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUsers) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUsers) IsFriend(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return f.friends[[2]uuid.UUID{a, b}] || f.friends[[2]uuid.UUID{b, a}], nil
}

type fakeRunner struct{}

func (fakeRunner) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func testSetup() (*fakeOrders, *fakeAccounts, *fakeUsers, *checkout.Service) {
	orders := &fakeOrders{}
	accounts := newFakeAccounts()
	users := newFakeUsers()
	cat := &fakeCatalog{goods: map[string]catalog.Goods{
		"rose-1": {ID: "rose-1", Name: "Rose bouquet", PriceCoins: 20, Active: true},
	}}
	svc := checkout.NewService(orders, accounts, cat, users, fakeRunner{}, nil)
	return orders, accounts, users, svc
}

func selfBuyer(users *fakeUsers, coins int64, accounts *fakeAccounts) uuid.UUID {
	id := uuid.New()
	users.add(&user.User{
		ID: id, Nickname: "buyer",
		ShippingName: "B", ShippingPhone: "123", ShippingAddress: "1 Main St",
	})
	accounts.seed(id, coins)
	return id
}

func TestPlaceOrderDebitsWallet(t *testing.T) {
	orders, accounts, users, svc := testSetup()
	buyer := selfBuyer(users, 100, accounts)

	o, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID: "rose-1", Quantity: 2,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if o.Status != order.StatusSettled {
		t.Fatalf("goods orders settle at creation, got %v", o.Status)
	}
	if o.CoinPrice != 40 {
		t.Fatalf("expected total 40 coins, got %d", o.CoinPrice)
	}

	b := accounts.accounts[buyer]
	if b.GoldCoin != 60 {
		t.Fatalf("expected 60 coins left, got %d", b.GoldCoin)
	}
	if b.LifetimeSpend != 40 {
		t.Fatalf("expected lifetime spend 40, got %d", b.LifetimeSpend)
	}
	if len(accounts.entries) != 1 || accounts.entries[0].CoinDelta != -40 {
		t.Fatalf("expected spend entry -40, got %+v", accounts.entries)
	}
	if len(orders.orders) != 1 {
		t.Fatalf("expected one stored order, got %d", len(orders.orders))
	}
}

func TestPlaceOrderInsufficientBalance(t *testing.T) {
	orders, accounts, users, svc := testSetup()
	buyer := selfBuyer(users, 50, accounts)

	_, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID: "rose-1", Quantity: 3, // 60 coins, only 50 held
	})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if accounts.accounts[buyer].GoldCoin != 50 {
		t.Fatalf("failed order must not change the balance, got %d", accounts.accounts[buyer].GoldCoin)
	}
	if len(accounts.entries) != 0 {
		t.Fatal("failed order must not write a bill entry")
	}
	_ = orders
}

func TestPlaceOrderGiftRequiresFriendship(t *testing.T) {
	_, accounts, users, svc := testSetup()
	buyer := selfBuyer(users, 100, accounts)
	stranger := uuid.New()
	users.add(&user.User{ID: stranger, Nickname: "stranger"})

	_, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID:     "rose-1",
		Quantity:    1,
		RecipientID: uuid.NullUUID{UUID: stranger, Valid: true},
	})
	if !errors.Is(err, checkout.ErrNotFriends) {
		t.Fatalf("expected ErrNotFriends, got %v", err)
	}

	users.befriend(buyer, stranger)
	o, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID:     "rose-1",
		Quantity:    1,
		RecipientID: uuid.NullUUID{UUID: stranger, Valid: true},
	})
	if err != nil {
		t.Fatalf("gift to friend failed: %v", err)
	}
	if !o.RecipientID.Valid || o.RecipientID.UUID != stranger {
		t.Fatalf("order should record the recipient, got %+v", o.RecipientID)
	}
}

func TestPlaceOrderGiftUnknownRecipient(t *testing.T) {
	_, accounts, users, svc := testSetup()
	buyer := selfBuyer(users, 100, accounts)

	_, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID:     "rose-1",
		Quantity:    1,
		RecipientID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
	})
	if !errors.Is(err, checkout.ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}
}

func TestPlaceOrderFallsBackToProfileShipping(t *testing.T) {
	_, accounts, users, svc := testSetup()
	buyer := selfBuyer(users, 100, accounts)

	o, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID: "rose-1", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if !o.ShipAddress.Valid || o.ShipAddress.String != "1 Main St" {
		t.Fatalf("expected profile shipping on the order, got %+v", o.ShipAddress)
	}
}

func TestPlaceOrderMissingShipping(t *testing.T) {
	_, accounts, users, svc := testSetup()
	buyer := uuid.New()
	users.add(&user.User{ID: buyer, Nickname: "no-address"})
	accounts.seed(buyer, 100)

	_, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID: "rose-1", Quantity: 1,
	})
	if !errors.Is(err, checkout.ErrMissingShippingInfo) {
		t.Fatalf("expected ErrMissingShippingInfo, got %v", err)
	}
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	_, accounts, users, svc := testSetup()
	buyer := selfBuyer(users, 100, accounts)

	o, err := svc.PlaceOrder(context.Background(), buyer, checkout.Purchase{
		GoodsID: "rose-1", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), uuid.New(), o.OrderNo); !errors.Is(err, order.ErrOrderNotFound) {
		t.Fatalf("foreign order must look not-found, got %v", err)
	}
	got, err := svc.GetOrder(context.Background(), buyer, o.OrderNo)
	if err != nil || got.OrderNo != o.OrderNo {
		t.Fatalf("owner lookup failed: %v", err)
	}
}

package transfer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/loveline/loveline-api/internal/domain/bill"
	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/domain/transfer"
	"github.com/loveline/loveline-api/internal/domain/user"
)

type fakeStore struct {
	mu        sync.Mutex
	transfers map[uuid.UUID]*transfer.Transfer
}

func newFakeStore() *fakeStore {
	return &fakeStore{transfers: map[uuid.UUID]*transfer.Transfer{}}
}

func (f *fakeStore) CreateTx(ctx context.Context, tx *sqlx.Tx, t *transfer.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	cp := *t
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return nil, transfer.ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*transfer.Transfer, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) MarkClaimedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return transfer.ErrTransferNotFound
	}
	if t.Status != transfer.StatusUnclaimed {
		return transfer.ErrAlreadyClaimed
	}
	t.Status = transfer.StatusClaimed
	return nil
}

func (f *fakeStore) MarkExpiredTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return transfer.ErrTransferNotFound
	}
	if t.Status != transfer.StatusUnclaimed {
		return transfer.ErrBadState
	}
	t.Status = transfer.StatusExpired
	return nil
}

func (f *fakeStore) SelectStaleForUpdateTx(ctx context.Context, tx *sqlx.Tx, now time.Time, limit int) ([]transfer.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transfer.Transfer
	for _, t := range f.transfers {
		if t.Status == transfer.StatusUnclaimed && t.ExpiresAt.Before(now) {
			out = append(out, *t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]transfer.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transfer.Transfer
	for _, t := range f.transfers {
		if t.SenderID == userID || t.RecipientID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	transfers, _ := f.ListForUser(ctx, userID, 0, 0)
	return len(transfers), nil
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

func (f *fakeAccounts) coins(userID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.accounts[userID]; ok {
		return b.GoldCoin
	}
	return 0
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

type fakeUsers struct {
	known map[uuid.UUID]bool
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if f.known[id] {
		return &user.User{ID: id}, nil
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUsers) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

func (f *fakeUsers) IsFriend(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return true, nil
}

type fakeRunner struct{}

func (fakeRunner) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func testSetup(known ...uuid.UUID) (*fakeStore, *fakeAccounts, *transfer.Service) {
	store := newFakeStore()
	accounts := newFakeAccounts()
	users := &fakeUsers{known: map[uuid.UUID]bool{}}
	for _, id := range known {
		users.known[id] = true
	}
	svc := transfer.NewService(store, accounts, users, fakeRunner{}, nil, 72*time.Hour)
	return store, accounts, svc
}

func TestSendAndClaimConservesCoins(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	_, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 30)
	accounts.seed(recipient, 0)

	// Gift the whole balance away.
	tr, err := svc.Send(context.Background(), sender, recipient, 30, "for you")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if accounts.coins(sender) != 0 {
		t.Fatalf("sender should be debited at send time, has %d", accounts.coins(sender))
	}
	if accounts.coins(recipient) != 0 {
		t.Fatalf("recipient must not be credited before claim, has %d", accounts.coins(recipient))
	}

	balance, err := svc.Claim(context.Background(), recipient, tr.ID)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if balance.GoldCoin != 30 {
		t.Fatalf("expected recipient to hold 30 coins, got %d", balance.GoldCoin)
	}
	if total := accounts.coins(sender) + accounts.coins(recipient); total != 30 {
		t.Fatalf("coins not conserved: %d", total)
	}
	if len(accounts.entries) != 2 {
		t.Fatalf("expected gift_out and gift_in entries, got %d", len(accounts.entries))
	}
}

func TestSendEntryReferencesTransfer(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	_, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 50)

	tr, err := svc.Send(context.Background(), sender, recipient, 20, "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(accounts.entries) != 1 {
		t.Fatalf("expected one gift_out entry, got %d", len(accounts.entries))
	}
	entry := accounts.entries[0]
	if entry.Type != bill.EntryTypeGiftOut {
		t.Fatalf("expected gift_out entry, got %s", entry.Type)
	}
	if entry.ReferenceID != tr.ID.String() {
		t.Fatalf("gift_out entry reference = %q, want transfer id %q", entry.ReferenceID, tr.ID)
	}

	if _, err := svc.Claim(context.Background(), recipient, tr.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if got := accounts.entries[1].ReferenceID; got != tr.ID.String() {
		t.Fatalf("gift_in entry reference = %q, want transfer id %q", got, tr.ID)
	}
}

func TestSendInsufficientBalance(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	store, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 10)

	_, err := svc.Send(context.Background(), sender, recipient, 30, "")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if accounts.coins(sender) != 10 {
		t.Fatalf("failed send must not change the balance, got %d", accounts.coins(sender))
	}
	_ = store
}

func TestSendToUnknownRecipient(t *testing.T) {
	sender := uuid.New()
	_, accounts, svc := testSetup(sender)
	accounts.seed(sender, 100)

	_, err := svc.Send(context.Background(), sender, uuid.New(), 10, "")
	if !errors.Is(err, transfer.ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}
}

func TestSendToSelf(t *testing.T) {
	sender := uuid.New()
	_, accounts, svc := testSetup(sender)
	accounts.seed(sender, 100)

	if _, err := svc.Send(context.Background(), sender, sender, 10, ""); !errors.Is(err, transfer.ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
}

func TestClaimTwice(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	_, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 50)

	tr, _ := svc.Send(context.Background(), sender, recipient, 20, "")
	if _, err := svc.Claim(context.Background(), recipient, tr.ID); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if _, err := svc.Claim(context.Background(), recipient, tr.ID); !errors.Is(err, transfer.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if accounts.coins(recipient) != 20 {
		t.Fatalf("double claim changed the balance: %d", accounts.coins(recipient))
	}
}

func TestClaimByNonRecipient(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	_, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 50)

	tr, _ := svc.Send(context.Background(), sender, recipient, 20, "")
	if _, err := svc.Claim(context.Background(), uuid.New(), tr.ID); !errors.Is(err, transfer.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestExpireStaleRefundsSender(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	store, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 50)

	tr, _ := svc.Send(context.Background(), sender, recipient, 20, "")

	// Push the transfer past its deadline.
	store.mu.Lock()
	store.transfers[tr.ID].ExpiresAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	n, err := svc.ExpireStale(context.Background(), 100)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired transfer, got %d", n)
	}
	if accounts.coins(sender) != 50 {
		t.Fatalf("sender should be refunded to 50, has %d", accounts.coins(sender))
	}

	if _, err := svc.Claim(context.Background(), recipient, tr.ID); !errors.Is(err, transfer.ErrTransferExpired) {
		t.Fatalf("claim after expiry should fail, got %v", err)
	}
	if accounts.coins(recipient) != 0 {
		t.Fatalf("recipient must not receive expired gift, has %d", accounts.coins(recipient))
	}
}

func TestExpireStaleIgnoresClaimed(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	store, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 50)

	tr, _ := svc.Send(context.Background(), sender, recipient, 20, "")
	if _, err := svc.Claim(context.Background(), recipient, tr.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	store.mu.Lock()
	store.transfers[tr.ID].ExpiresAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	n, err := svc.ExpireStale(context.Background(), 100)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("claimed transfer must not be swept, expired %d", n)
	}
	if accounts.coins(recipient) != 20 {
		t.Fatalf("claimed coins must stay with the recipient, got %d", accounts.coins(recipient))
	}

	// A sweeper racing a claim sees the state flip, not a claim error.
	if err := store.MarkExpiredTx(context.Background(), nil, tr.ID); !errors.Is(err, transfer.ErrBadState) {
		t.Fatalf("expected ErrBadState for a claimed transfer, got %v", err)
	}
}

func TestClaimOverdueBeforeSweep(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	store, accounts, svc := testSetup(sender, recipient)
	accounts.seed(sender, 50)

	tr, _ := svc.Send(context.Background(), sender, recipient, 20, "")
	store.mu.Lock()
	store.transfers[tr.ID].ExpiresAt = time.Now().Add(-time.Minute)
	store.mu.Unlock()

	if _, err := svc.Claim(context.Background(), recipient, tr.ID); !errors.Is(err, transfer.ErrTransferExpired) {
		t.Fatalf("overdue transfer must not be claimable, got %v", err)
	}
}

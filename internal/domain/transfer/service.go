package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/loveline/loveline-api/internal/domain/bill"
	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/domain/user"
	"github.com/loveline/loveline-api/internal/pkg/database"
	"github.com/loveline/loveline-api/internal/pkg/metrics"
)

// Store is the transfer persistence surface used by the service and
// the expiry worker.
type Store interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, t *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Transfer, error)
	MarkClaimedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
	MarkExpiredTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
	SelectStaleForUpdateTx(ctx context.Context, tx *sqlx.Tx, now time.Time, limit int) ([]Transfer, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transfer, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type Accounts interface {
	ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta ledger.Delta, entry *bill.Entry) (*ledger.Balance, error)
}

// Service moves gold coins between users through an escrow record. The
// sender is debited when the gift is sent; the coins sit on the
// transfer row until the recipient claims them or the expiry sweep
// refunds the sender.
type Service struct {
	store    Store
	accounts Accounts
	users    user.Repository
	runner   database.Runner
	metrics  *metrics.Metrics
	expiry   time.Duration
}

func NewService(store Store, accounts Accounts, users user.Repository, runner database.Runner, m *metrics.Metrics, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = 72 * time.Hour
	}
	return &Service{store: store, accounts: accounts, users: users, runner: runner, metrics: m, expiry: expiry}
}

// Send debits the sender and records an unclaimed transfer in one
// transaction. Insufficient balance is caught under the sender's row
// lock and aborts both writes.
func (s *Service) Send(ctx context.Context, senderID, recipientID uuid.UUID, amount int64, message string) (*Transfer, error) {
	if amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	if senderID == recipientID {
		return nil, ErrSelfTransfer
	}
	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRecipientNotFound
	}

	// The id is assigned up front so the debit entry can reference the
	// transfer it escrows.
	t := &Transfer{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		Status:      StatusUnclaimed,
		Message:     message,
		ExpiresAt:   time.Now().Add(s.expiry),
	}
	err = s.runner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		entry := &bill.Entry{
			Type:        bill.EntryTypeGiftOut,
			CoinDelta:   -amount,
			Description: fmt.Sprintf("Gift of %d gold coins", amount),
			ReferenceID: t.ID.String(),
		}
		if _, err := s.accounts.ApplyDelta(ctx, tx, senderID, ledger.Delta{GoldCoin: -amount}, entry); err != nil {
			return err
		}
		return s.store.CreateTx(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransfer("sent")
	s.metrics.ObserveBillEntry()
	log.Info().
		Str("transfer_id", t.ID.String()).
		Str("sender_id", senderID.String()).
		Str("recipient_id", recipientID.String()).
		Int64("amount", amount).
		Msg("gift transfer sent")
	return t, nil
}

// Claim credits the recipient and closes the escrow. Only the
// designated recipient may claim, exactly once, before expiry.
func (s *Service) Claim(ctx context.Context, userID, transferID uuid.UUID) (*ledger.Balance, error) {
	var balance *ledger.Balance
	err := s.runner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.store.GetForUpdateTx(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if t.RecipientID != userID {
			return ErrForbidden
		}
		switch t.Status {
		case StatusClaimed:
			return ErrAlreadyClaimed
		case StatusExpired:
			return ErrTransferExpired
		}
		if time.Now().After(t.ExpiresAt) {
			// Overdue but not yet swept; the sweep will refund the sender.
			return ErrTransferExpired
		}

		entry := &bill.Entry{
			Type:        bill.EntryTypeGiftIn,
			CoinDelta:   t.Amount,
			Description: fmt.Sprintf("Claimed gift of %d gold coins", t.Amount),
			ReferenceID: t.ID.String(),
		}
		balance, err = s.accounts.ApplyDelta(ctx, tx, userID, ledger.Delta{GoldCoin: t.Amount}, entry)
		if err != nil {
			return err
		}
		return s.store.MarkClaimedTx(ctx, tx, transferID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransfer("claimed")
	s.metrics.ObserveBillEntry()
	log.Info().
		Str("transfer_id", transferID.String()).
		Str("recipient_id", userID.String()).
		Msg("gift transfer claimed")
	return balance, nil
}

// ExpireStale refunds overdue unclaimed transfers back to their
// senders, one batch per call. Returns the number of transfers expired.
func (s *Service) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	expired := 0
	err := s.runner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		stale, err := s.store.SelectStaleForUpdateTx(ctx, tx, time.Now(), batchSize)
		if err != nil {
			return err
		}
		for i := range stale {
			t := &stale[i]
			entry := &bill.Entry{
				Type:        bill.EntryTypeAdjustment,
				CoinDelta:   t.Amount,
				Description: fmt.Sprintf("Unclaimed gift of %d gold coins refunded", t.Amount),
				ReferenceID: t.ID.String(),
			}
			if _, err := s.accounts.ApplyDelta(ctx, tx, t.SenderID, ledger.Delta{GoldCoin: t.Amount}, entry); err != nil {
				return err
			}
			if err := s.store.MarkExpiredTx(ctx, tx, t.ID); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := 0; i < expired; i++ {
		s.metrics.ObserveTransfer("expired")
	}
	return expired, nil
}

// List returns transfers the user sent or received.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transfer, int, error) {
	transfers, err := s.store.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountForUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return transfers, total, nil
}

package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/loveline/loveline-api/internal/domain/bill"
	"github.com/loveline/loveline-api/internal/pkg/database"
	"github.com/loveline/loveline-api/internal/pkg/metrics"
)

// Store is the balance store the service runs against.
type Store interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)
	ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta Delta, entry *bill.Entry) (*Balance, error)
	ResetDailyQuotas(ctx context.Context) (int64, error)
}

// BillTrail is the read side of the audit trail.
type BillTrail interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]bill.Entry, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	SumDeltas(ctx context.Context, userID uuid.UUID) (coinSum, creditSum int64, err error)
}

type Service struct {
	store   Store
	bills   BillTrail
	runner  database.Runner
	metrics *metrics.Metrics
}

func NewService(store Store, bills BillTrail, runner database.Runner, m *metrics.Metrics) *Service {
	return &Service{store: store, bills: bills, runner: runner, metrics: m}
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.store.GetBalance(ctx, userID)
}

func (s *Service) ListBills(ctx context.Context, userID uuid.UUID, limit, offset int) ([]bill.Entry, int, error) {
	entries, err := s.bills.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.bills.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SpendTranslation debits translation credits for a paid message-type action.
// The messaging transport calls this exactly like any other spend.
func (s *Service) SpendTranslation(ctx context.Context, userID uuid.UUID, characters int, messageRef string) (*Balance, error) {
	if characters <= 0 {
		return nil, ErrInvalidAmount
	}

	var balance *Balance
	err := s.runner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		balance, err = s.store.ApplyDelta(ctx, tx, userID, Delta{Credits: -int64(characters)}, &bill.Entry{
			Type:        bill.EntryTypeSpend,
			CreditDelta: -int64(characters),
			Description: fmt.Sprintf("Translated %d characters", characters),
			ReferenceID: messageRef,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveBillEntry()
	log.Info().Str("user_id", userID.String()).Int("characters", characters).Str("reference_id", messageRef).Msg("translation credits spent")
	return balance, nil
}

// ConsumeMatch decrements the daily match quota. Quota movements are not
// currency, so no bill entry is written.
func (s *Service) ConsumeMatch(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	var balance *Balance
	err := s.runner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		balance, err = s.store.ApplyDelta(ctx, tx, userID, Delta{MatchQuota: -1}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// ResetDailyQuotas is the external daily reset hook.
func (s *Service) ResetDailyQuotas(ctx context.Context) (int64, error) {
	n, err := s.store.ResetDailyQuotas(ctx)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("accounts", n).Msg("daily match quotas reset")
	return n, nil
}

// ReconcileResult reports whether the bill trail sums to the stated balance.
type ReconcileResult struct {
	UserID             uuid.UUID `json:"user_id"`
	GoldCoin           int64     `json:"gold_coin"`
	CoinSum            int64     `json:"coin_sum"`
	TranslationCredits int64     `json:"translation_credits"`
	CreditSum          int64     `json:"credit_sum"`
	Balanced           bool      `json:"balanced"`
}

// Reconcile checks the auditability contract: the signed bill deltas for a
// user must equal the balances accumulated since account creation.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error) {
	balance, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	coinSum, creditSum, err := s.bills.SumDeltas(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		UserID:             userID,
		GoldCoin:           balance.GoldCoin,
		CoinSum:            coinSum,
		TranslationCredits: balance.TranslationCredits,
		CreditSum:          creditSum,
		Balanced:           coinSum == balance.GoldCoin && creditSum == balance.TranslationCredits,
	}
	if !result.Balanced {
		log.Error().
			Str("user_id", userID.String()).
			Int64("gold_coin", balance.GoldCoin).
			Int64("coin_sum", coinSum).
			Int64("translation_credits", balance.TranslationCredits).
			Int64("credit_sum", creditSum).
			Msg("ledger reconciliation mismatch")
	}
	return result, nil
}

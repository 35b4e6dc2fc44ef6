package bill

import (
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a balance-affecting event.
type EntryType string

const (
	EntryTypeTopUp      EntryType = "topup"
	EntryTypeSpend      EntryType = "spend"
	EntryTypeGiftIn     EntryType = "gift_in"
	EntryTypeGiftOut    EntryType = "gift_out"
	EntryTypeVIP        EntryType = "vip"
	EntryTypeAdjustment EntryType = "adjustment"
)

// Entry is one immutable row in the bill trail. Rows are never updated or
// deleted after insert; per-user sums of the signed deltas reconcile against
// the account balance.
type Entry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Type        EntryType `db:"entry_type" json:"type"`
	CoinDelta   int64     `db:"coin_delta" json:"coin_delta"`
	CreditDelta int64     `db:"credit_delta" json:"credit_delta"`
	Description string    `db:"description" json:"description"`
	ReferenceID string    `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

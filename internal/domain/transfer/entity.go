package transfer

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status follows Unclaimed -> Claimed | Expired. Both end states are
// terminal; expiry refunds the sender.
type Status int

const (
	StatusUnclaimed Status = 0
	StatusClaimed   Status = 1
	StatusExpired   Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusUnclaimed:
		return "unclaimed"
	case StatusClaimed:
		return "claimed"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Transfer is a gold-coin gift held in escrow: the sender is debited at
// send time, the recipient is credited at claim time. The sum of coins
// across both wallets plus open escrow is conserved.
type Transfer struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	SenderID    uuid.UUID    `db:"sender_id" json:"sender_id"`
	RecipientID uuid.UUID    `db:"recipient_id" json:"recipient_id"`
	Amount      int64        `db:"amount" json:"amount"`
	Status      Status       `db:"status" json:"status"`
	Message     string       `db:"message" json:"message,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time    `db:"expires_at" json:"expires_at"`
	ClaimedAt   sql.NullTime `db:"claimed_at" json:"claimed_at,omitempty"`
}

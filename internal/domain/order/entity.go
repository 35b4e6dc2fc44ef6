package order

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Family tags which settlement strategy an order belongs to.
type Family string

const (
	FamilyVIP    Family = "vip"
	FamilyCoin   Family = "coin"
	FamilyCredit Family = "credit"
	FamilyGoods  Family = "goods"
)

func (f Family) Valid() bool {
	switch f {
	case FamilyVIP, FamilyCoin, FamilyCredit, FamilyGoods:
		return true
	}
	return false
}

// Status follows the lifecycle Pending -> Settled | Cancelled. Settled
// and Cancelled are terminal.
type Status int

const (
	StatusPending   Status = 0
	StatusSettled   Status = 2
	StatusCancelled Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSettled:
		return "settled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a purchase in any family. Fiat fields are set for money
// families (vip, coin, credit); coin pricing is set for goods. Quantity
// carries months for vip orders and item count for goods. GrantAmount
// freezes the coins or credits promised at creation so settlement does
// not depend on later catalog edits.
type Order struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	OrderNo      string         `db:"order_no" json:"order_no"`
	BuyerID      uuid.UUID      `db:"buyer_id" json:"buyer_id"`
	Family       Family         `db:"family" json:"family"`
	Status       Status         `db:"status" json:"status"`
	ProductID    string         `db:"product_id" json:"product_id"`
	Quantity     int            `db:"quantity" json:"quantity"`
	FiatAmount   float64        `db:"fiat_amount" json:"fiat_amount,omitempty"`
	Currency     string         `db:"currency" json:"currency,omitempty"`
	CoinPrice    int64          `db:"coin_price" json:"coin_price,omitempty"`
	GrantAmount  int64          `db:"grant_amount" json:"grant_amount,omitempty"`
	RecipientID  uuid.NullUUID  `db:"recipient_id" json:"recipient_id,omitempty"`
	ShipName     sql.NullString `db:"ship_name" json:"ship_name,omitempty"`
	ShipPhone    sql.NullString `db:"ship_phone" json:"ship_phone,omitempty"`
	ShipAddress  sql.NullString `db:"ship_address" json:"ship_address,omitempty"`
	GatewayTxnID sql.NullString `db:"gateway_txn_id" json:"gateway_txn_id,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	SettledAt    sql.NullTime   `db:"settled_at" json:"settled_at,omitempty"`
}

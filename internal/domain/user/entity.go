package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the account record the economy engine needs:
// identity, moderation state and the default shipping destination used
// when goods are sent to the buyer themselves.
type User struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Nickname        string    `db:"nickname" json:"nickname"`
	IsBanned        bool      `db:"is_banned" json:"is_banned"`
	ShippingName    string    `db:"shipping_name" json:"shipping_name"`
	ShippingPhone   string    `db:"shipping_phone" json:"shipping_phone"`
	ShippingAddress string    `db:"shipping_address" json:"shipping_address"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// HasShippingInfo reports whether the stored destination is complete
// enough to fulfil a goods order.
func (u *User) HasShippingInfo() bool {
	return u.ShippingName != "" && u.ShippingPhone != "" && u.ShippingAddress != ""
}

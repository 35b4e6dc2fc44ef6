package checkout

import "errors"

var (
	ErrInvalidQuantity     = errors.New("quantity must be at least one")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrNotFriends          = errors.New("recipient is not a friend")
	ErrMissingShippingInfo = errors.New("shipping information is incomplete")
)

package order

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrAlreadySettled = errors.New("order already settled")
	// ErrBadState is returned when an order is in a terminal state other
	// than settled, e.g. completing a cancelled order.
	ErrBadState = errors.New("order not in a settleable state")
)

package ledger

import "errors"

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrQuotaExhausted      = errors.New("daily match quota exhausted")
	ErrInvalidAmount       = errors.New("invalid amount")
)

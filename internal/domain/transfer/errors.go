package transfer

import "errors"

var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrAlreadyClaimed   = errors.New("transfer already claimed")
	ErrTransferExpired  = errors.New("transfer expired")
	// ErrBadState means the transfer left the unclaimed state while the
	// caller held a stale view of it.
	ErrBadState = errors.New("transfer is not awaiting claim")
	// ErrForbidden means the caller is not the designated recipient.
	ErrForbidden         = errors.New("not the transfer recipient")
	ErrSelfTransfer      = errors.New("cannot gift coins to yourself")
	ErrRecipientNotFound = errors.New("recipient not found")
)

package settlement

import "errors"

var (
	// ErrPaymentNotVerified means the gateway answered but the payment did
	// not check out (wrong amount, wrong currency, or not completed). The
	// order stays pending so the buyer can retry with a correct payment.
	ErrPaymentNotVerified = errors.New("payment not verified")
	// ErrUnsupportedFamily is returned for selections the payment flow
	// cannot price, e.g. goods, which settle from the wallet at checkout.
	ErrUnsupportedFamily = errors.New("unsupported product family")
	// ErrFamilyMismatch means the completion request's family tag does not
	// match the order being completed.
	ErrFamilyMismatch = errors.New("family does not match order")
)

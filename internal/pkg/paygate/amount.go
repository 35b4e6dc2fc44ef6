package paygate

import (
	"fmt"
	"math/big"
)

// amountEpsilon is the tolerance used when comparing a gateway-reported amount
// against the quoted order amount. Gateways round to two decimal places.
var amountEpsilon = big.NewRat(1, 100)

// ParseAmount parses a decimal amount string into an exact rational.
func ParseAmount(raw string) (*big.Rat, error) {
	amount, ok := new(big.Rat).SetString(raw)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

// AmountsMatch reports whether two amounts are equal within amountEpsilon.
func AmountsMatch(expected, actual *big.Rat) bool {
	diff := new(big.Rat).Sub(expected, actual)
	return diff.Abs(diff).Cmp(amountEpsilon) <= 0
}

// FormatAmount renders an amount with two decimal places, the precision the
// gateway settles in.
func FormatAmount(amount *big.Rat) string {
	return amount.FloatString(2)
}

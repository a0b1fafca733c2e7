package domain

import (
	"fmt"
	"math"
)

// All cash amounts, prices, and commissions in this package are int64
// cents. Dollars appear only at the API boundary, where clients send
// and receive float64 amounts.

// DollarsToCents converts a dollar amount from the API into cents. It
// rejects amounts carrying sub-cent precision rather than silently
// rounding them, so a client typo like 150.505 surfaces as an error
// instead of a 150.51 order.
func DollarsToCents(amount float64) (int64, error) {
	// Scale to tenths of a cent first. float64 cannot represent most
	// decimal fractions exactly (1.10 scales to 1099.999...), so round
	// before checking that the tenths digit is zero.
	tenths := math.Round(amount * 1000)
	if math.Mod(tenths, 10) != 0 {
		return 0, fmt.Errorf("amount %v has sub-cent precision", amount)
	}
	return int64(math.Round(amount * 100)), nil
}

// CentsToDollars converts internal cents back to the dollar amount
// reported on the API.
func CentsToDollars(cents int64) float64 {
	return float64(cents) / 100.0
}

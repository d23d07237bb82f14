package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BpsDenominator is the divisor for basis-point fee rates.
const BpsDenominator = 10_000

// FeeFromBps computes a fee in cents from an amount and a basis-point
// rate, rounding half up so buyer and seller legs stay deterministic.
func FeeFromBps(amountCents, bps int64) int64 {
	fee := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(BpsDenominator))
	return fee.Round(0).IntPart()
}

// FormatCents renders an integer cent amount as a dollar string for logs.
func FormatCents(amountCents int64) string {
	return fmt.Sprintf("$%s", decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)).StringFixed(2))
}

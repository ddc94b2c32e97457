// Package money holds the fixed-point amount helpers shared by the ledger,
// payment run and direct credit layers. All amounts are shopspring decimals;
// currencies handled here carry two minor-unit digits.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the exponent used for bank amounts (cents).
const MinorUnitDigits = 2

var minorUnitFactor = decimal.New(1, MinorUnitDigits)

// Format2dp renders an amount with exactly two decimal places and no
// thousands separators, e.g. "400.00". Bank files depend on this being
// byte-stable.
func Format2dp(d decimal.Decimal) string {
	return d.StringFixed(MinorUnitDigits)
}

// MinorUnits converts an amount to an integer count of minor units,
// e.g. 250.50 -> 25050. Amounts with sub-cent precision are rejected so a
// rounding step can never silently move money.
func MinorUnits(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(minorUnitFactor)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d.String())
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts a cent count back to a decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -MinorUnitDigits)
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// Sum adds a slice of amounts.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// SameCurrency guards comparisons between amounts that belong to different
// accounts. The core never converts; mismatched currencies are an input error.
func SameCurrency(a, b string) error {
	if a != b {
		return fmt.Errorf("currency mismatch: %s vs %s", a, b)
	}
	return nil
}

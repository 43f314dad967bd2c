package types

import (
	"github.com/shopspring/decimal"
)

// MoneyTolerance absorbs rounding drift from upstream systems. It is applied
// only at comparison points; stored amounts stay exact decimals.
var MoneyTolerance = decimal.NewFromFloat(0.01)

// Round2 rounds a monetary amount to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsSettled reports whether a remaining balance is close enough to zero to
// consider the document fully paid.
func IsSettled(balance decimal.Decimal) bool {
	return balance.LessThanOrEqual(MoneyTolerance)
}

// ExceedsWithTolerance reports whether amount exceeds limit by more than the
// money tolerance.
func ExceedsWithTolerance(amount, limit decimal.Decimal) bool {
	return amount.Sub(limit).GreaterThan(MoneyTolerance)
}

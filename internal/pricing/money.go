package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value stored in minor units (cents).
// All pricing arithmetic stays in integers; the decimal form exists only
// for presentation and for rule values configured in major units.
type Money = int64

var hundred = decimal.NewFromInt(100)

// Display renders a minor-unit amount as a major-unit string with exactly
// two fractional digits, e.g. 1999 -> "19.99".
func Display(amount Money) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// FromMajorUnits converts a decimal major-unit value into minor units,
// truncating anything below one minor unit. This is the single place where
// major-unit rule values become integer amounts.
func FromMajorUnits(value decimal.Decimal) Money {
	return value.Mul(hundred).IntPart()
}

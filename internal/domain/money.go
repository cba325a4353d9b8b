package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CentsFromMajor converts a major-unit amount (e.g. 49.99) to minor units,
// rounding half away from zero at the minor-unit boundary.
func CentsFromMajor(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FormatCents renders minor units as a major-unit string with two decimals.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ApplyDiscount returns cents reduced by percent, rounded half away from zero.
func ApplyDiscount(cents int64, percent int32) int64 {
	if percent <= 0 {
		return cents
	}
	if percent >= 100 {
		return 0
	}
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(int64(100 - percent))).
		Div(hundred).
		Round(0).
		IntPart()
}

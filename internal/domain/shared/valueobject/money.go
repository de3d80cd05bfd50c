package valueobject

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for persisted amounts
const Scale int32 = 2

// Money is an immutable single-currency amount.
//
// Intermediate results keep full precision; Rounded applies round-half-up
// (away from zero) to Scale digits and is called once, right before an
// amount is stored or shown.
type Money struct {
	amount decimal.Decimal
}

// NewMoney wraps a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// Zero returns a zero amount
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Add returns m + other
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// MulInt returns m * factor
func (m Money) MulInt(factor int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor))}
}

// Percent returns m * rate / 100
func (m Money) Percent(rate decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(rate).Div(decimal.NewFromInt(100))}
}

// Rounded returns the amount rounded half-up to Scale fractional digits
func (m Money) Rounded() Money {
	return Money{amount: m.amount.Round(Scale)}
}

// ClampZero returns m, or zero when m is negative
func (m Money) ClampZero() Money {
	if m.amount.IsNegative() {
		return Zero()
	}
	return m
}

// String formats the rounded amount with exactly Scale fractional digits
func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

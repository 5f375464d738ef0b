package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in the platform currency.
// Amount is stored as BIGINT paise (10^-2) to avoid floating point errors.
type Money struct {
	Amount int64 // paise
}

// NewMoney creates a new Money instance from paise.
func NewMoney(amount int64) Money {
	return Money{Amount: amount}
}

// ToDecimal converts the int64 paise to a shopspring/decimal.Decimal in rupees.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(100))
}

// FromDecimal converts a decimal rupee value to int64 paise, rounding half up.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// ApplyRate multiplies an amount in paise by a fractional rate (0.01 = 1%)
// and returns the result in paise, rounded half up.
func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("₹%s", m.ToDecimal().StringFixed(2))
}

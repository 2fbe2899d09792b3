// Package core provides money parsing and handling utilities.
//
// Amounts are stored as hundredths of the currency unit. Parsing and
// rounding go through shopspring/decimal so that user input such as
// "12,345" never passes through a float.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// maxUnits caps parsed amounts well below the int64 cents range.
var maxUnits = decimal.NewFromInt(1_000_000_000_000)

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs, exponents, and values beyond maxUnits are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> {1234}, nil
//	ParseMoney("12,34")  -> {1234}, nil
//	ParseMoney("12.345") -> {1235}, nil (rounds half up)
//	ParseMoney("0")      -> {0}, nil
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "+-eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.GreaterThan(maxUnits) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}, nil
}

// MoneyFromUnits builds Money from a whole number of currency units.
func MoneyFromUnits(units int64) Money {
	return Money{Cents: units * 100}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// RoundUnits rounds to the nearest whole currency unit, halves away from zero.
func (m Money) RoundUnits() int64 {
	return m.Decimal().Round(0).IntPart()
}

// Units returns the amount as a float64 for chart payloads and JSON.
// Use Cents for arithmetic.
func (m Money) Units() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// String renders the amount with two decimals, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

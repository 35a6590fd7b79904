// Package money implements the Money nominal type from spec.md §3.1: a
// non-negative integer of minor currency units. Fractional amounts never
// enter the core; callers convert at the boundary (e.g. an OCR vendor
// response carrying a decimal amount is rounded to minor units before it
// reaches a Transaction).
package money

import "fmt"

// Money is a non-negative amount expressed in minor units (e.g. cents).
type Money int64

// New validates and returns a Money value. Negative amounts are rejected —
// spec.md §3.1 states Money is "never fractional" and non-negative.
func New(minorUnits int64) (Money, error) {
	if minorUnits < 0 {
		return 0, fmt.Errorf("money: amount must be non-negative, got %d", minorUnits)
	}

	return Money(minorUnits), nil
}

// Int64 returns the minor-unit integer value.
func (m Money) Int64() int64 { return int64(m) }

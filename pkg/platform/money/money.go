// Package money implements the checked unsigned arithmetic used for escrow,
// fee, premium, payout and balance math. Amounts are integer base units;
// division truncates toward zero.
package money

import (
	"math/bits"

	dErrors "crossledger/pkg/domain-errors"
)

// Amount is a non-negative quantity in base units.
type Amount = uint64

// Mul returns a*b or an Overflow error.
func Mul(a, b Amount) (Amount, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, dErrors.New(dErrors.CodeOverflow, "multiplication overflows")
	}
	return lo, nil
}

// Add returns a+b or an Overflow error.
func Add(a, b Amount) (Amount, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, dErrors.New(dErrors.CodeOverflow, "addition overflows")
	}
	return sum, nil
}

// Sub returns a-b or an Underflow error.
func Sub(a, b Amount) (Amount, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, dErrors.New(dErrors.CodeUnderflow, "subtraction underflows")
	}
	return diff, nil
}

// MulDiv returns floor(a*b/d) using a 128-bit intermediate product, so
// a*b may exceed 64 bits as long as the quotient fits.
func MulDiv(a, b, d Amount) (Amount, error) {
	if d == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "division by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, dErrors.New(dErrors.CodeOverflow, "quotient overflows")
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// BasisPoints returns floor(amount*bps/10000).
func BasisPoints(amount Amount, bps uint64) (Amount, error) {
	return MulDiv(amount, bps, 10_000)
}

// Percent returns floor(amount*pct/100).
func Percent(amount Amount, pct uint64) (Amount, error) {
	return MulDiv(amount, pct, 100)
}

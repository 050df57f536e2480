package fixedpoint

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// MulDiv returns floor(a*b/d). The product is formed at 256 bits so it never
// overflows; only the quotient has to fit in 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrZeroBalance
	}
	q, _ := new(uint256.Int).MulDivOverflow(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	return narrow(q)
}

// MulDivCeil returns ceil(a*b/d).
func MulDivCeil(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrZeroBalance
	}
	x, y, den := uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d)
	q, _ := new(uint256.Int).MulDivOverflow(x, y, den)
	if !new(uint256.Int).MulMod(x, y, den).IsZero() {
		q.AddUint64(q, 1)
	}
	return narrow(q)
}

// Product returns a*b as a 256-bit value. Used for invariant comparisons
// where the product of two reserves does not fit in 64 bits.
func Product(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// Wide lifts a into the 256-bit domain.
func Wide(a uint64) *uint256.Int {
	return uint256.NewInt(a)
}

// Narrow converts a 256-bit intermediate back to 64 bits.
func Narrow(v *uint256.Int) (uint64, error) {
	return narrow(v)
}

func narrow(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}

// Min returns the smaller of a and b.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the largest decimal scale a 64-bit amount can carry while
// still representing at least one whole token.
const MaxDecimals = 18

// CheckScale validates a single token's decimal scale.
func CheckScale(decimals uint8) error {
	if decimals > MaxDecimals {
		return fmt.Errorf("%w: %d decimals exceeds %d", ErrInvalidPrecision, decimals, MaxDecimals)
	}
	return nil
}

// CheckScales validates that two token scales can be priced against each
// other.
func CheckScales(a, b uint8) error {
	if err := CheckScale(a); err != nil {
		return err
	}
	return CheckScale(b)
}

// Pow10 returns 10^decimals.
func Pow10(decimals uint8) (uint64, error) {
	if err := CheckScale(decimals); err != nil {
		return 0, err
	}
	out := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		out *= 10
	}
	return out, nil
}

// ToDecimal renders a smallest-unit amount as a decimal token amount.
func ToDecimal(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// FromDecimal converts a decimal token amount to smallest units. Values with
// more fractional digits than the scale allows are rejected, never rounded.
func FromDecimal(d decimal.Decimal, decimals uint8) (uint64, error) {
	if err := CheckScale(decimals); err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, ErrUnderflow
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidPrecision, d.String(), decimals)
	}
	bi := shifted.BigInt()
	if !bi.IsUint64() {
		return 0, ErrOverflow
	}
	return bi.Uint64(), nil
}

// ParseAmount parses a human-readable amount ("12.5") into smallest units.
func ParseAmount(input string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", input, err)
	}
	return FromDecimal(d, decimals)
}

// Format renders an amount with exactly `decimals` fractional digits.
func Format(amount uint64, decimals uint8) string {
	return ToDecimal(amount, decimals).StringFixed(int32(decimals))
}

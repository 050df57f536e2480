package fixedpoint

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCheckScales(t *testing.T) {
	require.NoError(t, CheckScales(6, 18))
	require.ErrorIs(t, CheckScales(6, 19), ErrInvalidPrecision)
	require.ErrorIs(t, CheckScale(255), ErrInvalidPrecision)
}

func TestPow10(t *testing.T) {
	v, err := Pow10(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)

	v, err = Pow10(18)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000_000_000_000), v)

	_, err = Pow10(19)
	require.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("12.5", 6)
	require.NoError(t, err)
	require.Equal(t, uint64(12_500_000), got)

	got, err = ParseAmount("3", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got)

	_, err = ParseAmount("0.0000001", 6)
	require.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = ParseAmount("-1", 6)
	require.ErrorIs(t, err, ErrUnderflow)

	_, err = ParseAmount("18446744073709551616", 0)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = ParseAmount("abc", 6)
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "1.500000", Format(1_500_000, 6))
	require.Equal(t, "42", Format(42, 0))
	require.True(t, ToDecimal(25, 1).Equal(decimal.RequireFromString("2.5")))
}

package aggregate

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatTokenAmount(t *testing.T) {
	require.Equal(t, "0", formatTokenAmount(nil, 6))
	require.Equal(t, "1000", formatTokenAmount(big.NewInt(1000), 0))
	require.Equal(t, "1.500000", formatTokenAmount(big.NewInt(1_500_000), 6))
	require.Equal(t, "0.000000000000000001", formatTokenAmount(big.NewInt(1), 18))
}

func TestFormatFeeAmount(t *testing.T) {
	require.Equal(t, "0.0000", formatFeeAmount(decimal.Zero, 0))
	require.Equal(t, "0.3000", formatFeeAmount(decimal.RequireFromString("0.3"), 0))
	require.Equal(t, "1.0000003000", formatFeeAmount(decimal.RequireFromString("1000000.3"), 6))
}

func TestComputeAPR(t *testing.T) {
	require.Nil(t, computeAPR(decimal.Zero, decimal.Zero, 100, 100, 3600))
	require.Nil(t, computeAPR(decimal.NewFromInt(1), decimal.Zero, 100, 100, 0))
	require.Nil(t, computeAPR(decimal.NewFromInt(1), decimal.Zero, 0, 100, 3600))

	// 1% of each side over one day: 1% daily yield.
	apr := computeAPR(decimal.NewFromInt(10), decimal.NewFromInt(20), 1000, 2000, 86400)
	require.NotNil(t, apr)
	require.Equal(t, "3.650000000000000000", *apr)

	// Fractional fees count: 0.5 of 1000 on both sides over a year.
	apr = computeAPR(decimal.RequireFromString("0.5"), decimal.RequireFromString("0.5"), 1000, 1000, 365*86400)
	require.Equal(t, "0.000500000000000000", *apr)
}

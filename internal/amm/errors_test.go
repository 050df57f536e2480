package amm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"ammcore/internal/curve"
)

func TestFromCurveErrorMapsEveryKind(t *testing.T) {
	cases := map[*curve.Error]*Error{
		curve.ErrInvalidPrecision:      ErrInvalidPrecision,
		curve.ErrOverflow:              ErrOverflow,
		curve.ErrUnderflow:             ErrUnderflow,
		curve.ErrInvalidFeeAmount:      ErrInvalidFee,
		curve.ErrInsufficientBalance:   ErrInsufficientBalance,
		curve.ErrZeroBalance:           ErrZeroBalance,
		curve.ErrSlippageLimitExceeded: ErrSlippageExceeded,
		curve.ErrInvalidAmount:         ErrInvalidAmount,
	}
	for in, want := range cases {
		got := FromCurveError(fmt.Errorf("wrapped: %w", in))
		require.ErrorIs(t, got, want, "kind %s", in.Kind)
	}
	require.Len(t, curveCodes, len(cases))

	plain := errors.New("disk full")
	require.Equal(t, plain, FromCurveError(plain))
	require.NoError(t, FromCurveError(nil))
}

func TestErrorFormatting(t *testing.T) {
	err := newError(CodeSlippageExceeded, "amount out %d below minimum %d", 90, 91)
	require.Equal(t, "SlippageExceeded: amount out 90 below minimum 91", err.Error())
	require.Equal(t, "PoolLocked", ErrPoolLocked.Error())
	require.NotErrorIs(t, err, ErrPoolLocked)

	code, ok := CodeOf(fmt.Errorf("op: %w", err))
	require.True(t, ok)
	require.Equal(t, CodeSlippageExceeded, code)
}

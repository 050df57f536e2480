package curve

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"ammcore/internal/fixedpoint"
)

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10_000

// ValidateFee checks that feeBps is within [0, 10000].
func ValidateFee(feeBps uint16) error {
	if feeBps > BpsDenominator {
		return newError(KindInvalidFeeAmount, "fee %d bps exceeds %d", feeBps, BpsDenominator)
	}
	return nil
}

// ApplyFee splits amountIn into the part that trades and the fee retained by
// the pool. The fee is floor(amountIn * feeBps / 10000).
func ApplyFee(amountIn uint64, feeBps uint16) (net uint64, fee uint64, err error) {
	if err := ValidateFee(feeBps); err != nil {
		return 0, 0, err
	}
	fee, err = fixedpoint.MulDiv(amountIn, uint64(feeBps), BpsDenominator)
	if err != nil {
		return 0, 0, fromMath(err, "fee amount")
	}
	net, err = fixedpoint.Sub(amountIn, fee)
	if err != nil {
		return 0, 0, fromMath(err, "net amount")
	}
	return net, fee, nil
}

// exactFee returns amountIn * feeBps / 10000 without rounding.
func exactFee(amountIn uint64, feeBps uint16) decimal.Decimal {
	scaled := new(uint256.Int).Mul(fixedpoint.Wide(amountIn), fixedpoint.Wide(uint64(feeBps)))
	return decimal.NewFromBigInt(scaled.ToBig(), -4)
}

// netInScaled returns amountIn * (10000 - feeBps): the traded input kept at
// basis-point resolution so fractional fees are charged exactly.
func netInScaled(amountIn uint64, feeBps uint16) *uint256.Int {
	keep := uint64(BpsDenominator - uint64(feeBps))
	return new(uint256.Int).Mul(fixedpoint.Wide(amountIn), fixedpoint.Wide(keep))
}

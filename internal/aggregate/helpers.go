package aggregate

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const ratioScale = 18

// feeDigits are the fractional smallest-unit digits a basis-point fee can
// produce.
const feeDigits = 4

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).StringFixed(int32(decimals))
}

// formatFeeAmount renders a fee in whole tokens, keeping the fractional
// smallest units.
func formatFeeAmount(fee decimal.Decimal, decimals uint8) string {
	return fee.Shift(-int32(decimals)).StringFixed(int32(decimals) + feeDigits)
}

func computeFeeRates(feeA, feeB decimal.Decimal, reserveA, reserveB uint64) (*string, *string) {
	var feeRateA, feeRateB *string

	if rate := computeRate(feeA, reserveA); rate != nil {
		val := rate.FloatString(ratioScale)
		feeRateA = &val
	}
	if rate := computeRate(feeB, reserveB); rate != nil {
		val := rate.FloatString(ratioScale)
		feeRateB = &val
	}
	return feeRateA, feeRateB
}

func computeRate(fee decimal.Decimal, reserve uint64) *big.Rat {
	if fee.Sign() == 0 || reserve == 0 {
		return nil
	}
	return new(big.Rat).Quo(fee.Rat(), new(big.Rat).SetUint64(reserve))
}

// computeAPR annualizes the window's fee yield on pool value. A balanced
// constant-product pool holds half its value in each asset, so the yield is
// the mean of the per-asset fee rates.
func computeAPR(feeA, feeB decimal.Decimal, reserveA, reserveB uint64, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	rateA := computeRate(feeA, reserveA)
	rateB := computeRate(feeB, reserveB)
	if rateA == nil && rateB == nil {
		return nil
	}

	yield := new(big.Rat)
	if rateA != nil {
		yield.Add(yield, rateA)
	}
	if rateB != nil {
		yield.Add(yield, rateB)
	}
	yield.Quo(yield, big.NewRat(2, 1))

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(yield, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

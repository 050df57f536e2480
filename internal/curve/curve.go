package curve

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"ammcore/internal/fixedpoint"
)

// SwapQuote is the outcome of pricing one trade against a reserve pair.
type SwapQuote struct {
	AmountIn uint64
	// FeeAmount is FeeExact floored to whole units.
	FeeAmount uint64
	// FeeExact is the fee the curve charges, amountIn * feeBps / 10000,
	// with up to four fractional digits.
	FeeExact      decimal.Decimal
	AmountOut     uint64
	NewReserveIn  uint64
	NewReserveOut uint64
	// PriceImpactBps is the execution price shortfall against the spot
	// price, fee included.
	PriceImpactBps uint64
}

// Quote prices amountIn against (reserveIn, reserveOut). It solves
//
//	reserveIn * reserveOut = (reserveIn + netIn) * (reserveOut - amountOut)
//
// for amountOut with netIn = amountIn * (1 - fee), and floors the result so
// the pool never pays out more than the invariant allows.
func Quote(reserveIn, reserveOut, amountIn uint64, feeBps uint16) (SwapQuote, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return SwapQuote{}, newError(KindZeroBalance, "reserves %d/%d", reserveIn, reserveOut)
	}
	if amountIn == 0 {
		return SwapQuote{}, newError(KindInvalidAmount, "amount in is zero")
	}
	_, fee, err := ApplyFee(amountIn, feeBps)
	if err != nil {
		return SwapQuote{}, err
	}

	netScaled := netInScaled(amountIn, feeBps)
	numerator := new(uint256.Int).Mul(fixedpoint.Wide(reserveOut), netScaled)
	denominator := new(uint256.Int).Mul(fixedpoint.Wide(reserveIn), fixedpoint.Wide(BpsDenominator))
	denominator.Add(denominator, netScaled)
	if denominator.IsZero() {
		return SwapQuote{}, newError(KindZeroBalance, "curve denominator")
	}
	amountOut, err := fixedpoint.Narrow(new(uint256.Int).Div(numerator, denominator))
	if err != nil {
		return SwapQuote{}, fromMath(err, "amount out")
	}
	if amountOut == 0 {
		return SwapQuote{}, newError(KindInvalidAmount, "amount in %d too small to buy any output", amountIn)
	}

	newIn, err := fixedpoint.Add(reserveIn, amountIn)
	if err != nil {
		return SwapQuote{}, fromMath(err, "reserve in")
	}
	newOut, err := fixedpoint.Sub(reserveOut, amountOut)
	if err != nil {
		return SwapQuote{}, fromMath(err, "reserve out")
	}
	if err := CheckInvariant(reserveIn, reserveOut, newIn, newOut); err != nil {
		return SwapQuote{}, err
	}

	return SwapQuote{
		AmountIn:       amountIn,
		FeeAmount:      fee,
		FeeExact:       exactFee(amountIn, feeBps),
		AmountOut:      amountOut,
		NewReserveIn:   newIn,
		NewReserveOut:  newOut,
		PriceImpactBps: priceImpactBps(reserveIn, reserveOut, amountIn, amountOut),
	}, nil
}

// QuoteScaled is Quote for tokens with known decimal scales.
func QuoteScaled(reserveIn, reserveOut, amountIn uint64, feeBps uint16, decimalsIn, decimalsOut uint8) (SwapQuote, error) {
	if err := fixedpoint.CheckScales(decimalsIn, decimalsOut); err != nil {
		return SwapQuote{}, fromMath(err, "token scales")
	}
	return Quote(reserveIn, reserveOut, amountIn, feeBps)
}

// CheckSlippage fails when amountOut is below the caller's minimum.
func CheckSlippage(amountOut, minAmountOut uint64) error {
	if amountOut < minAmountOut {
		return newError(KindSlippageLimitExceeded, "amount out %d below minimum %d", amountOut, minAmountOut)
	}
	return nil
}

// CheckInvariant fails if the reserve product decreased.
func CheckInvariant(oldA, oldB, newA, newB uint64) error {
	before := fixedpoint.Product(oldA, oldB)
	after := fixedpoint.Product(newA, newB)
	if after.Lt(before) {
		return newError(KindUnderflow, "invariant decreased from %s to %s", before.ToBig().String(), after.ToBig().String())
	}
	return nil
}

// SpotPrice returns how many whole output tokens one whole input token buys
// at the current reserves, ignoring fees.
func SpotPrice(reserveIn, reserveOut uint64, decimalsIn, decimalsOut uint8) (decimal.Decimal, error) {
	if err := fixedpoint.CheckScales(decimalsIn, decimalsOut); err != nil {
		return decimal.Zero, fromMath(err, "token scales")
	}
	if reserveIn == 0 || reserveOut == 0 {
		return decimal.Zero, newError(KindZeroBalance, "reserves %d/%d", reserveIn, reserveOut)
	}
	in := fixedpoint.ToDecimal(reserveIn, decimalsIn)
	out := fixedpoint.ToDecimal(reserveOut, decimalsOut)
	return out.DivRound(in, 18), nil
}

func priceImpactBps(reserveIn, reserveOut, amountIn, amountOut uint64) uint64 {
	// execution/spot = (amountOut/amountIn) / (reserveOut/reserveIn)
	num := new(uint256.Int).Mul(fixedpoint.Product(amountOut, reserveIn), fixedpoint.Wide(BpsDenominator))
	den := fixedpoint.Product(amountIn, reserveOut)
	if den.IsZero() {
		return 0
	}
	ratio := new(uint256.Int).Div(num, den)
	if !ratio.IsUint64() || ratio.Uint64() >= BpsDenominator {
		return 0
	}
	return BpsDenominator - ratio.Uint64()
}

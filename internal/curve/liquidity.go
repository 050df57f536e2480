package curve

import (
	"ammcore/internal/fixedpoint"
)

// Reserves is a snapshot of the pool balances the accounting works on.
type Reserves struct {
	A           uint64
	B           uint64
	TotalShares uint64
}

// DepositResult is what a deposit mints and consumes.
type DepositResult struct {
	Shares  uint64
	AmountA uint64
	AmountB uint64
}

// WithdrawResult is what burning shares pays out.
type WithdrawResult struct {
	Shares  uint64
	AmountA uint64
	AmountB uint64
}

// DepositAmounts computes shares and consumed amounts for a deposit of up to
// (desiredA, desiredB). Into an empty pool the desired amounts are taken as
// is and shares are desiredA scaled by initialShareScale. Otherwise the
// limiting asset decides the share count (floored) and both consumed amounts
// are re-derived from it, rounded up, so the pool ratio is preserved and the
// depositor never pays less than their shares are worth.
func DepositAmounts(r Reserves, desiredA, desiredB, minA, minB, initialShareScale uint64) (DepositResult, error) {
	if desiredA == 0 || desiredB == 0 {
		return DepositResult{}, newError(KindInvalidAmount, "deposit amounts %d/%d", desiredA, desiredB)
	}

	var res DepositResult
	if r.TotalShares == 0 {
		if initialShareScale == 0 {
			return DepositResult{}, newError(KindInvalidPrecision, "initial share scale is zero")
		}
		shares, err := fixedpoint.Mul(desiredA, initialShareScale)
		if err != nil {
			return DepositResult{}, fromMath(err, "initial shares")
		}
		res = DepositResult{Shares: shares, AmountA: desiredA, AmountB: desiredB}
	} else {
		if r.A == 0 || r.B == 0 {
			return DepositResult{}, newError(KindZeroBalance, "reserves %d/%d with %d shares", r.A, r.B, r.TotalShares)
		}
		sharesA, err := fixedpoint.MulDiv(r.TotalShares, desiredA, r.A)
		if err != nil {
			return DepositResult{}, fromMath(err, "shares from a")
		}
		sharesB, err := fixedpoint.MulDiv(r.TotalShares, desiredB, r.B)
		if err != nil {
			return DepositResult{}, fromMath(err, "shares from b")
		}
		shares := fixedpoint.Min(sharesA, sharesB)
		if shares == 0 {
			return DepositResult{}, newError(KindInvalidAmount, "deposit %d/%d too small to mint a share", desiredA, desiredB)
		}
		amountA, amountB, err := amountsForShares(r, shares)
		if err != nil {
			return DepositResult{}, err
		}
		res = DepositResult{Shares: shares, AmountA: amountA, AmountB: amountB}
	}

	if res.AmountA < minA || res.AmountB < minB {
		return DepositResult{}, newError(KindSlippageLimitExceeded,
			"deposit %d/%d below minimum %d/%d", res.AmountA, res.AmountB, minA, minB)
	}
	if _, err := fixedpoint.Add(r.A, res.AmountA); err != nil {
		return DepositResult{}, fromMath(err, "reserve a")
	}
	if _, err := fixedpoint.Add(r.B, res.AmountB); err != nil {
		return DepositResult{}, fromMath(err, "reserve b")
	}
	if _, err := fixedpoint.Add(r.TotalShares, res.Shares); err != nil {
		return DepositResult{}, fromMath(err, "total shares")
	}
	return res, nil
}

// DepositForShares prices an exact share amount, charging at most
// (maxA, maxB).
func DepositForShares(r Reserves, shares, maxA, maxB uint64) (DepositResult, error) {
	if shares == 0 {
		return DepositResult{}, newError(KindInvalidAmount, "shares is zero")
	}
	if r.TotalShares == 0 || r.A == 0 || r.B == 0 {
		return DepositResult{}, newError(KindZeroBalance, "pool has no liquidity to price shares")
	}
	amountA, amountB, err := amountsForShares(r, shares)
	if err != nil {
		return DepositResult{}, err
	}
	if amountA > maxA || amountB > maxB {
		return DepositResult{}, newError(KindSlippageLimitExceeded,
			"deposit %d/%d above maximum %d/%d", amountA, amountB, maxA, maxB)
	}
	if _, err := fixedpoint.Add(r.A, amountA); err != nil {
		return DepositResult{}, fromMath(err, "reserve a")
	}
	if _, err := fixedpoint.Add(r.B, amountB); err != nil {
		return DepositResult{}, fromMath(err, "reserve b")
	}
	if _, err := fixedpoint.Add(r.TotalShares, shares); err != nil {
		return DepositResult{}, fromMath(err, "total shares")
	}
	return DepositResult{Shares: shares, AmountA: amountA, AmountB: amountB}, nil
}

// WithdrawAmounts computes the payout for burning shares. Payouts are
// floored; the remainder stays in the pool.
func WithdrawAmounts(r Reserves, shares, minA, minB uint64) (WithdrawResult, error) {
	if shares == 0 {
		return WithdrawResult{}, newError(KindInvalidAmount, "shares is zero")
	}
	if shares > r.TotalShares {
		return WithdrawResult{}, newError(KindInsufficientBalance, "burn %d exceeds %d total shares", shares, r.TotalShares)
	}
	amountA, err := fixedpoint.MulDiv(r.A, shares, r.TotalShares)
	if err != nil {
		return WithdrawResult{}, fromMath(err, "withdraw a")
	}
	amountB, err := fixedpoint.MulDiv(r.B, shares, r.TotalShares)
	if err != nil {
		return WithdrawResult{}, fromMath(err, "withdraw b")
	}
	if amountA == 0 || amountB == 0 {
		return WithdrawResult{}, newError(KindInsufficientBalance, "burn %d shares pays %d/%d", shares, amountA, amountB)
	}
	if amountA < minA || amountB < minB {
		return WithdrawResult{}, newError(KindSlippageLimitExceeded,
			"withdraw %d/%d below minimum %d/%d", amountA, amountB, minA, minB)
	}
	return WithdrawResult{Shares: shares, AmountA: amountA, AmountB: amountB}, nil
}

// amountsForShares is ceil(reserve * shares / total) for both assets.
func amountsForShares(r Reserves, shares uint64) (uint64, uint64, error) {
	amountA, err := fixedpoint.MulDivCeil(r.A, shares, r.TotalShares)
	if err != nil {
		return 0, 0, fromMath(err, "amount a")
	}
	amountB, err := fixedpoint.MulDivCeil(r.B, shares, r.TotalShares)
	if err != nil {
		return 0, 0, fromMath(err, "amount b")
	}
	return amountA, amountB, nil
}

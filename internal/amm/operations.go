package amm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ammcore/internal/curve"
	"ammcore/internal/fixedpoint"
	"ammcore/internal/model"
	"ammcore/internal/storage"
)

// InitializeRequest creates a pool and seeds it with its first liquidity.
type InitializeRequest struct {
	Seed      uint64
	TokenA    common.Address
	TokenB    common.Address
	DecimalsA uint8
	DecimalsB uint8
	AmountA   uint64
	AmountB   uint64
	FeeBps    uint16
	// Authority defaults to the caller.
	Authority common.Address
}

type DepositRequest struct {
	DesiredA uint64
	DesiredB uint64
	MinA     uint64
	MinB     uint64
}

// DepositSharesRequest mints an exact share amount for at most MaxA/MaxB.
type DepositSharesRequest struct {
	Shares uint64
	MaxA   uint64
	MaxB   uint64
}

type SwapRequest struct {
	Direction    model.Direction
	AmountIn     uint64
	MinAmountOut uint64
}

type WithdrawRequest struct {
	Shares uint64
	MinA   uint64
	MinB   uint64
}

// UpdateRequest changes pool parameters. Nil fields are left as they are.
type UpdateRequest struct {
	FeeBps *uint16
	Locked *bool
}

type DepositResult struct {
	Shares  uint64
	AmountA uint64
	AmountB uint64
	Pool    model.Pool
}

type SwapResult struct {
	Direction model.Direction
	AmountIn  uint64
	Fee       uint64
	FeeExact  decimal.Decimal
	AmountOut uint64
	Pool      model.Pool
}

type WithdrawResult struct {
	Shares  uint64
	AmountA uint64
	AmountB uint64
	Pool    model.Pool
}

// Initialize creates the pool identified by (seed, tokens, authority) and
// credits the caller with the initial shares.
func (e *Engine) Initialize(ctx context.Context, caller common.Address, req InitializeRequest) (model.Pool, error) {
	authority := req.Authority
	if authority == (common.Address{}) {
		authority = caller
	}
	id := model.PoolID(req.Seed, req.TokenA, req.TokenB, authority)

	pool, err := e.execute(ctx, "initialize", id, caller, func(_ model.Pool, found bool) (mutation, error) {
		if found {
			return mutation{}, storage.ErrPoolExists
		}
		if req.TokenA == req.TokenB {
			return mutation{}, newError(CodeInvalidAmount, "token a and token b are both %s", req.TokenA.Hex())
		}
		if err := fixedpoint.CheckScales(req.DecimalsA, req.DecimalsB); err != nil {
			return mutation{}, newError(CodeInvalidPrecision, "%v", err)
		}
		if err := curve.ValidateFee(req.FeeBps); err != nil {
			return mutation{}, FromCurveError(err)
		}
		res, err := curve.DepositAmounts(curve.Reserves{}, req.AmountA, req.AmountB, 0, 0, e.cfg.InitialShareScale)
		if err != nil {
			return mutation{}, FromCurveError(err)
		}

		next := model.Pool{
			ID:          id,
			Seed:        req.Seed,
			TokenA:      req.TokenA,
			TokenB:      req.TokenB,
			DecimalsA:   req.DecimalsA,
			DecimalsB:   req.DecimalsB,
			ReserveA:    res.AmountA,
			ReserveB:    res.AmountB,
			TotalShares: res.Shares,
			FeeBps:      req.FeeBps,
			Authority:   authority,
		}
		ev := model.PoolEvent{Kind: model.EventInitialize, Caller: caller, AmountA: res.AmountA, AmountB: res.AmountB, Shares: res.Shares}
		return mutation{
			next:      next,
			transfers: depositTransfers(next, caller, res.AmountA, res.AmountB, res.Shares),
			events:    []model.PoolEvent{ev},
		}, nil
	})
	if err != nil {
		return model.Pool{}, err
	}
	e.logger.Info("pool initialized",
		zap.String("pool", pool.ID.Hex()),
		zap.String("authority", pool.Authority.Hex()),
		zap.Uint64("reserve_a", pool.ReserveA),
		zap.Uint64("reserve_b", pool.ReserveB),
		zap.Uint64("shares", pool.TotalShares),
		zap.Uint16("fee_bps", pool.FeeBps),
	)
	return pool, nil
}

// Deposit adds liquidity in the pool ratio, bounded by the desired amounts.
func (e *Engine) Deposit(ctx context.Context, id common.Hash, caller common.Address, req DepositRequest) (DepositResult, error) {
	var res curve.DepositResult
	pool, err := e.execute(ctx, "deposit", id, caller, func(current model.Pool, found bool) (mutation, error) {
		if err := requireOpen(current, found); err != nil {
			return mutation{}, err
		}
		var err error
		res, err = curve.DepositAmounts(reservesOf(current), req.DesiredA, req.DesiredB, req.MinA, req.MinB, e.cfg.InitialShareScale)
		if err != nil {
			return mutation{}, FromCurveError(err)
		}
		return depositMutation(current, caller, res)
	})
	if err != nil {
		return DepositResult{}, err
	}
	e.logger.Info("deposit",
		zap.String("pool", id.Hex()),
		zap.String("caller", caller.Hex()),
		zap.Uint64("amount_a", res.AmountA),
		zap.Uint64("amount_b", res.AmountB),
		zap.Uint64("shares", res.Shares),
	)
	return DepositResult{Shares: res.Shares, AmountA: res.AmountA, AmountB: res.AmountB, Pool: pool}, nil
}

// DepositShares mints exactly req.Shares, charging the rounded-up amounts.
func (e *Engine) DepositShares(ctx context.Context, id common.Hash, caller common.Address, req DepositSharesRequest) (DepositResult, error) {
	var res curve.DepositResult
	pool, err := e.execute(ctx, "deposit_shares", id, caller, func(current model.Pool, found bool) (mutation, error) {
		if err := requireOpen(current, found); err != nil {
			return mutation{}, err
		}
		var err error
		res, err = curve.DepositForShares(reservesOf(current), req.Shares, req.MaxA, req.MaxB)
		if err != nil {
			return mutation{}, FromCurveError(err)
		}
		return depositMutation(current, caller, res)
	})
	if err != nil {
		return DepositResult{}, err
	}
	e.logger.Info("deposit shares",
		zap.String("pool", id.Hex()),
		zap.String("caller", caller.Hex()),
		zap.Uint64("amount_a", res.AmountA),
		zap.Uint64("amount_b", res.AmountB),
		zap.Uint64("shares", res.Shares),
	)
	return DepositResult{Shares: res.Shares, AmountA: res.AmountA, AmountB: res.AmountB, Pool: pool}, nil
}

// Swap trades req.AmountIn of one asset for the other. The whole input,
// fee included, stays in the pool.
func (e *Engine) Swap(ctx context.Context, id common.Hash, caller common.Address, req SwapRequest) (SwapResult, error) {
	var q curve.SwapQuote
	pool, err := e.execute(ctx, "swap", id, caller, func(current model.Pool, found bool) (mutation, error) {
		if err := requireOpen(current, found); err != nil {
			return mutation{}, err
		}
		var err error
		q, err = quotePool(current, req.Direction, req.AmountIn)
		if err != nil {
			return mutation{}, err
		}
		if err := curve.CheckSlippage(q.AmountOut, req.MinAmountOut); err != nil {
			return mutation{}, FromCurveError(err)
		}

		next := current
		inAsset, outAsset := model.AssetA, model.AssetB
		if req.Direction == model.BToA {
			inAsset, outAsset = model.AssetB, model.AssetA
			next.ReserveB, next.ReserveA = q.NewReserveIn, q.NewReserveOut
		} else {
			next.ReserveA, next.ReserveB = q.NewReserveIn, q.NewReserveOut
		}

		vault := current.Vault()
		feeExact := q.FeeExact
		ev := model.PoolEvent{
			Kind:      model.EventSwap,
			Caller:    caller,
			Direction: req.Direction,
			AmountIn:  q.AmountIn,
			AmountOut: q.AmountOut,
			Fee:       q.FeeAmount,
			FeeExact:  &feeExact,
		}
		return mutation{
			next: next,
			transfers: []model.Transfer{
				{Pool: current.ID, Asset: inAsset, From: caller, To: vault, Amount: q.AmountIn},
				{Pool: current.ID, Asset: outAsset, From: vault, To: caller, Amount: q.AmountOut},
			},
			events: []model.PoolEvent{ev},
		}, nil
	})
	if err != nil {
		return SwapResult{}, err
	}
	e.logger.Info("swap",
		zap.String("pool", id.Hex()),
		zap.String("caller", caller.Hex()),
		zap.Stringer("direction", req.Direction),
		zap.Uint64("amount_in", q.AmountIn),
		zap.Uint64("amount_out", q.AmountOut),
		zap.Stringer("fee", q.FeeExact),
	)
	return SwapResult{
		Direction: req.Direction,
		AmountIn:  q.AmountIn,
		Fee:       q.FeeAmount,
		FeeExact:  q.FeeExact,
		AmountOut: q.AmountOut,
		Pool:      pool,
	}, nil
}

// Withdraw burns shares for the proportional, rounded-down reserves.
func (e *Engine) Withdraw(ctx context.Context, id common.Hash, caller common.Address, req WithdrawRequest) (WithdrawResult, error) {
	var res curve.WithdrawResult
	pool, err := e.execute(ctx, "withdraw", id, caller, func(current model.Pool, found bool) (mutation, error) {
		if err := requireOpen(current, found); err != nil {
			return mutation{}, err
		}
		var err error
		res, err = curve.WithdrawAmounts(reservesOf(current), req.Shares, req.MinA, req.MinB)
		if err != nil {
			return mutation{}, FromCurveError(err)
		}

		next := current
		if next.ReserveA, err = fixedpoint.Sub(current.ReserveA, res.AmountA); err != nil {
			return mutation{}, newError(CodeUnderflow, "reserve a")
		}
		if next.ReserveB, err = fixedpoint.Sub(current.ReserveB, res.AmountB); err != nil {
			return mutation{}, newError(CodeUnderflow, "reserve b")
		}
		if next.TotalShares, err = fixedpoint.Sub(current.TotalShares, res.Shares); err != nil {
			return mutation{}, newError(CodeUnderflow, "total shares")
		}

		vault := current.Vault()
		ev := model.PoolEvent{Kind: model.EventWithdraw, Caller: caller, AmountA: res.AmountA, AmountB: res.AmountB, Shares: res.Shares}
		return mutation{
			next: next,
			transfers: []model.Transfer{
				{Pool: current.ID, Asset: model.AssetShare, From: caller, Amount: res.Shares},
				{Pool: current.ID, Asset: model.AssetA, From: vault, To: caller, Amount: res.AmountA},
				{Pool: current.ID, Asset: model.AssetB, From: vault, To: caller, Amount: res.AmountB},
			},
			events: []model.PoolEvent{ev},
		}, nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	e.logger.Info("withdraw",
		zap.String("pool", id.Hex()),
		zap.String("caller", caller.Hex()),
		zap.Uint64("amount_a", res.AmountA),
		zap.Uint64("amount_b", res.AmountB),
		zap.Uint64("shares", res.Shares),
	)
	return WithdrawResult{Shares: res.Shares, AmountA: res.AmountA, AmountB: res.AmountB, Pool: pool}, nil
}

// Update changes the fee or lock flag. Only the pool authority may call it,
// and it is allowed on a locked pool so the pool can be unlocked.
func (e *Engine) Update(ctx context.Context, id common.Hash, caller common.Address, req UpdateRequest) (model.Pool, error) {
	pool, err := e.execute(ctx, "update", id, caller, func(current model.Pool, found bool) (mutation, error) {
		if !found {
			return mutation{}, storage.ErrPoolNotFound
		}
		if caller != current.Authority {
			return mutation{}, newError(CodeInvalidAuthority, "caller %s is not the pool authority", caller.Hex())
		}
		if req.FeeBps == nil && req.Locked == nil {
			return mutation{}, newError(CodeInvalidAmount, "nothing to update")
		}

		next := current
		var events []model.PoolEvent
		if req.FeeBps != nil {
			if err := curve.ValidateFee(*req.FeeBps); err != nil {
				return mutation{}, FromCurveError(err)
			}
			next.FeeBps = *req.FeeBps
			events = append(events, model.PoolEvent{Kind: model.EventUpdateFee, Caller: caller})
		}
		if req.Locked != nil {
			next.Locked = *req.Locked
			kind := model.EventUnlock
			if next.Locked {
				kind = model.EventLock
			}
			events = append(events, model.PoolEvent{Kind: kind, Caller: caller})
		}
		return mutation{next: next, events: events}, nil
	})
	if err != nil {
		return model.Pool{}, err
	}
	e.logger.Info("pool updated",
		zap.String("pool", id.Hex()),
		zap.Uint16("fee_bps", pool.FeeBps),
		zap.Bool("locked", pool.Locked),
	)
	return pool, nil
}

// Quote previews a swap without changing anything.
func (e *Engine) Quote(ctx context.Context, id common.Hash, dir model.Direction, amountIn uint64) (curve.SwapQuote, error) {
	pool, err := e.store.LoadPool(ctx, id)
	if err != nil {
		return curve.SwapQuote{}, err
	}
	if err := requireOpen(pool, true); err != nil {
		return curve.SwapQuote{}, err
	}
	return quotePool(pool, dir, amountIn)
}

// Pool returns the stored state of a pool.
func (e *Engine) Pool(ctx context.Context, id common.Hash) (model.Pool, error) {
	return e.store.LoadPool(ctx, id)
}

// Pools lists every stored pool.
func (e *Engine) Pools(ctx context.Context) ([]model.Pool, error) {
	return e.store.ListPools(ctx)
}

func quotePool(pool model.Pool, dir model.Direction, amountIn uint64) (curve.SwapQuote, error) {
	reserveIn, reserveOut, decIn, decOut := pool.Reserves(dir)
	q, err := curve.QuoteScaled(reserveIn, reserveOut, amountIn, pool.FeeBps, decIn, decOut)
	if err != nil {
		return curve.SwapQuote{}, FromCurveError(err)
	}
	return q, nil
}

func requireOpen(pool model.Pool, found bool) error {
	if !found {
		return storage.ErrPoolNotFound
	}
	if pool.Locked {
		return newError(CodePoolLocked, "pool %s is locked", pool.ID.Hex())
	}
	return nil
}

func reservesOf(p model.Pool) curve.Reserves {
	return curve.Reserves{A: p.ReserveA, B: p.ReserveB, TotalShares: p.TotalShares}
}

func depositMutation(current model.Pool, caller common.Address, res curve.DepositResult) (mutation, error) {
	next := current
	var err error
	if next.ReserveA, err = fixedpoint.Add(current.ReserveA, res.AmountA); err != nil {
		return mutation{}, newError(CodeOverflow, "reserve a")
	}
	if next.ReserveB, err = fixedpoint.Add(current.ReserveB, res.AmountB); err != nil {
		return mutation{}, newError(CodeOverflow, "reserve b")
	}
	if next.TotalShares, err = fixedpoint.Add(current.TotalShares, res.Shares); err != nil {
		return mutation{}, newError(CodeOverflow, "total shares")
	}
	ev := model.PoolEvent{Kind: model.EventDeposit, Caller: caller, AmountA: res.AmountA, AmountB: res.AmountB, Shares: res.Shares}
	return mutation{
		next:      next,
		transfers: depositTransfers(next, caller, res.AmountA, res.AmountB, res.Shares),
		events:    []model.PoolEvent{ev},
	}, nil
}

func depositTransfers(pool model.Pool, caller common.Address, amountA, amountB, shares uint64) []model.Transfer {
	vault := pool.Vault()
	return []model.Transfer{
		{Pool: pool.ID, Asset: model.AssetA, From: caller, To: vault, Amount: amountA},
		{Pool: pool.ID, Asset: model.AssetB, From: caller, To: vault, Amount: amountB},
		{Pool: pool.ID, Asset: model.AssetShare, To: caller, Amount: shares},
	}
}

package aggregate

import (
	"math/big"

	"github.com/shopspring/decimal"

	"ammcore/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID        string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	VolumeA       *big.Int
	VolumeB       *big.Int
	FeeA          decimal.Decimal
	FeeB          decimal.Decimal
	ReserveA      uint64
	ReserveB      uint64
	TotalShares   uint64
	LastVersion   uint64
	LastTS        uint64
}

func NewAccumulator(ev model.PoolEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:      ev.PoolID.Hex(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeA:     big.NewInt(0),
		VolumeB:     big.NewInt(0),
		LastTS:      ev.Timestamp,
	}
}

// AddEvent folds one committed operation into the window. Reserves follow
// the highest pool version seen.
func (a *Accumulator) AddEvent(ev model.PoolEvent) {
	if ev.Timestamp > a.LastTS {
		a.LastTS = ev.Timestamp
	}
	if ev.Version >= a.LastVersion {
		a.LastVersion = ev.Version
		a.ReserveA = ev.ReserveA
		a.ReserveB = ev.ReserveB
		a.TotalShares = ev.TotalShares
	}

	switch ev.Kind {
	case model.EventSwap:
		a.applySwap(ev)
	case model.EventDeposit:
		a.DepositCount++
	case model.EventWithdraw:
		a.WithdrawCount++
	}
}

func (a *Accumulator) applySwap(ev model.PoolEvent) {
	volIn, volOut := a.VolumeA, a.VolumeB
	feeIn := &a.FeeA
	if ev.Direction == model.BToA {
		volIn, volOut = a.VolumeB, a.VolumeA
		feeIn = &a.FeeB
	}
	addUint64(volIn, ev.AmountIn)
	addUint64(volOut, ev.AmountOut)
	*feeIn = feeIn.Add(swapFee(ev))
	a.SwapCount++
}

// swapFee prefers the exact fee. Journals written without it carry only the
// whole-unit floor.
func swapFee(ev model.PoolEvent) decimal.Decimal {
	if ev.FeeExact != nil {
		return *ev.FeeExact
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(ev.Fee), 0)
}

func addUint64(target *big.Int, value uint64) {
	target.Add(target, new(big.Int).SetUint64(value))
}

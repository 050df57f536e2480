package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// EventKind names a committed pool operation.
type EventKind string

const (
	EventInitialize EventKind = "initialize"
	EventDeposit    EventKind = "deposit"
	EventSwap       EventKind = "swap"
	EventWithdraw   EventKind = "withdraw"
	EventLock       EventKind = "lock"
	EventUnlock     EventKind = "unlock"
	EventUpdateFee  EventKind = "update_fee"
)

// PoolEvent is the journal record of one committed operation. Amounts are
// encoded as strings so they survive JSON consumers limited to 53 bits.
// Reserve fields hold the state after the commit.
type PoolEvent struct {
	Kind      EventKind      `json:"kind"`
	PoolID    common.Hash    `json:"pool_id"`
	Caller    common.Address `json:"caller"`
	Version   uint64         `json:"version"`
	Timestamp uint64         `json:"timestamp"`

	Direction Direction `json:"direction,omitempty"`
	AmountIn  uint64    `json:"amount_in,string,omitempty"`
	AmountOut uint64    `json:"amount_out,string,omitempty"`
	Fee       uint64    `json:"fee,string,omitempty"`
	// FeeExact keeps the fractional part Fee drops.
	FeeExact *decimal.Decimal `json:"fee_exact,omitempty"`

	AmountA uint64 `json:"amount_a,string,omitempty"`
	AmountB uint64 `json:"amount_b,string,omitempty"`
	Shares  uint64 `json:"shares,string,omitempty"`

	FeeBps      uint16 `json:"fee_bps"`
	ReserveA    uint64 `json:"reserve_a,string"`
	ReserveB    uint64 `json:"reserve_b,string"`
	TotalShares uint64 `json:"total_shares,string"`
}

// NewPoolEvent fills the state fields of an event from the committed pool.
func NewPoolEvent(kind EventKind, pool Pool, caller common.Address) PoolEvent {
	return PoolEvent{
		Kind:        kind,
		PoolID:      pool.ID,
		Caller:      caller,
		Version:     pool.Version,
		Timestamp:   uint64(pool.UpdatedAt.Unix()),
		FeeBps:      pool.FeeBps,
		ReserveA:    pool.ReserveA,
		ReserveB:    pool.ReserveB,
		TotalShares: pool.TotalShares,
	}
}

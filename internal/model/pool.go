package model

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/zeebo/blake3"
)

// Pool is the persisted state of one constant-product pool.
type Pool struct {
	ID          common.Hash    `json:"id"`
	Seed        uint64         `json:"seed"`
	TokenA      common.Address `json:"token_a"`
	TokenB      common.Address `json:"token_b"`
	DecimalsA   uint8          `json:"decimals_a"`
	DecimalsB   uint8          `json:"decimals_b"`
	ReserveA    uint64         `json:"reserve_a"`
	ReserveB    uint64         `json:"reserve_b"`
	TotalShares uint64         `json:"total_shares"`
	FeeBps      uint16         `json:"fee_bps"`
	Locked      bool           `json:"locked"`
	Authority   common.Address `json:"authority"`
	Version     uint64         `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Status is the lifecycle state of a pool.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusActive        Status = "active"
	StatusLocked        Status = "locked"
)

// Status derives the lifecycle state from the stored fields.
func (p Pool) Status() Status {
	switch {
	case p.Version == 0:
		return StatusUninitialized
	case p.Locked:
		return StatusLocked
	default:
		return StatusActive
	}
}

// Reserves returns (in, out) reserves and decimals for a trade direction.
func (p Pool) Reserves(dir Direction) (reserveIn, reserveOut uint64, decIn, decOut uint8) {
	if dir == BToA {
		return p.ReserveB, p.ReserveA, p.DecimalsB, p.DecimalsA
	}
	return p.ReserveA, p.ReserveB, p.DecimalsA, p.DecimalsB
}

// PoolID derives the pool identity from its creation parameters.
func PoolID(seed uint64, tokenA, tokenB, authority common.Address) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)

	h := blake3.New()
	_, _ = h.Write(buf[:])
	_, _ = h.Write(tokenA.Bytes())
	_, _ = h.Write(tokenB.Bytes())
	_, _ = h.Write(authority.Bytes())
	return common.BytesToHash(h.Sum(nil))
}

// ParsePoolID parses a 0x-prefixed 32-byte hex pool id.
func ParsePoolID(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid pool id: %s", s)
	}
	return common.BytesToHash(b), nil
}

// ParseAddress parses a hex account or token address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %s", s)
	}
	return common.HexToAddress(s), nil
}

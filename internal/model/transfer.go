package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies one of the balances a pool moves.
type Asset uint8

const (
	AssetA Asset = iota
	AssetB
	// AssetShare is the pool's liquidity share token.
	AssetShare
)

func (a Asset) String() string {
	switch a {
	case AssetA:
		return "a"
	case AssetB:
		return "b"
	case AssetShare:
		return "share"
	default:
		return "unknown"
	}
}

func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Asset) UnmarshalText(text []byte) error {
	switch string(text) {
	case "a":
		*a = AssetA
	case "b":
		*a = AssetB
	case "share":
		*a = AssetShare
	default:
		return fmt.Errorf("invalid asset: %q", text)
	}
	return nil
}

// Transfer is one balance movement requested from custody. A zero From mints,
// a zero To burns.
type Transfer struct {
	Pool   common.Hash    `json:"pool"`
	Asset  Asset          `json:"asset"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount,string"`
}

// Reverse returns the transfer undoing t.
func (t Transfer) Reverse() Transfer {
	t.From, t.To = t.To, t.From
	return t
}

// Vault is the custody account holding the pool reserves.
func (p Pool) Vault() common.Address {
	return common.BytesToAddress(p.ID[common.HashLength-common.AddressLength:])
}

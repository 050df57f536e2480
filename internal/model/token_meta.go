package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenBalance is an on-chain ERC20 balance read for reconciliation.
type TokenBalance struct {
	Token    common.Address `json:"token"`
	Holder   common.Address `json:"holder"`
	Decimals uint8          `json:"decimals"`
	Balance  *big.Int       `json:"balance"`
	Block    uint64         `json:"block"`
}

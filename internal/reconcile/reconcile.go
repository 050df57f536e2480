// Package reconcile compares pool reserves with the token balances an
// on-chain vault actually holds.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammcore/internal/amm"
	"ammcore/internal/model"
)

// ErrDeficit is returned when a vault holds less than the recorded reserve.
var ErrDeficit = errors.New("vault balance below reserve")

// BalanceReader reads ERC20 state.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, holder common.Address, block *big.Int) (model.TokenBalance, error)
}

type Status string

const (
	StatusSolvent Status = "solvent"
	StatusSurplus Status = "surplus"
	StatusDeficit Status = "deficit"
)

// AssetReport is the comparison for one side of a pool.
type AssetReport struct {
	Asset            model.Asset    `json:"asset"`
	Token            common.Address `json:"token"`
	Reserve          uint64         `json:"reserve,string"`
	Balance          *big.Int       `json:"balance"`
	Difference       *big.Int       `json:"difference"`
	Status           Status         `json:"status"`
	ExpectedDecimals uint8          `json:"expected_decimals"`
	OnChainDecimals  uint8          `json:"onchain_decimals"`
}

// DecimalsMatch reports whether the token's decimals agree with the pool scale.
func (r AssetReport) DecimalsMatch() bool {
	return r.ExpectedDecimals == r.OnChainDecimals
}

// Report is the result of reconciling one pool.
type Report struct {
	PoolID  common.Hash    `json:"pool_id"`
	Vault   common.Address `json:"vault"`
	Block   uint64         `json:"block,omitempty"`
	Version uint64         `json:"version"`
	Assets  []AssetReport  `json:"assets"`
}

// Solvent reports whether every asset is covered.
func (r Report) Solvent() bool {
	for _, a := range r.Assets {
		if a.Status == StatusDeficit {
			return false
		}
	}
	return true
}

// Err folds the report into an error: a deficit or a decimals mismatch.
func (r Report) Err() error {
	var errs []error
	for _, a := range r.Assets {
		if a.Status == StatusDeficit {
			errs = append(errs, fmt.Errorf("%w: asset %s short by %s", ErrDeficit, a.Asset, new(big.Int).Neg(a.Difference)))
		}
		if !a.DecimalsMatch() {
			errs = append(errs, fmt.Errorf("%w: asset %s has %d decimals on chain, pool expects %d",
				amm.ErrInvalidPrecision, a.Asset, a.OnChainDecimals, a.ExpectedDecimals))
		}
	}
	return errors.Join(errs...)
}

type Reconciler struct {
	reader BalanceReader
	logger *zap.Logger
}

func New(reader BalanceReader, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{reader: reader, logger: logger}
}

// Check reads the vault's balances of both pool tokens at block (latest
// when nil) and compares them to the reserves.
func (r *Reconciler) Check(ctx context.Context, pool model.Pool, vault common.Address, block *big.Int) (Report, error) {
	report := Report{PoolID: pool.ID, Vault: vault, Version: pool.Version}
	if block != nil {
		report.Block = block.Uint64()
	}

	sides := []struct {
		asset    model.Asset
		token    common.Address
		reserve  uint64
		decimals uint8
	}{
		{model.AssetA, pool.TokenA, pool.ReserveA, pool.DecimalsA},
		{model.AssetB, pool.TokenB, pool.ReserveB, pool.DecimalsB},
	}
	for _, side := range sides {
		bal, err := r.reader.BalanceOf(ctx, side.token, vault, block)
		if err != nil {
			return Report{}, fmt.Errorf("balance of %s: %w", side.token.Hex(), err)
		}
		asset := compare(side.asset, side.token, side.reserve, side.decimals, bal)
		report.Assets = append(report.Assets, asset)

		r.logger.Info("reconciled asset",
			zap.String("pool", pool.ID.Hex()),
			zap.String("asset", side.asset.String()),
			zap.Uint64("reserve", side.reserve),
			zap.String("balance", asset.Balance.String()),
			zap.String("status", string(asset.Status)),
		)
	}
	return report, nil
}

func compare(asset model.Asset, token common.Address, reserve uint64, decimals uint8, bal model.TokenBalance) AssetReport {
	balance := bal.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	diff := new(big.Int).Sub(balance, new(big.Int).SetUint64(reserve))

	status := StatusSolvent
	switch diff.Sign() {
	case 1:
		status = StatusSurplus
	case -1:
		status = StatusDeficit
	}
	return AssetReport{
		Asset:            asset,
		Token:            token,
		Reserve:          reserve,
		Balance:          balance,
		Difference:       diff,
		Status:           status,
		ExpectedDecimals: decimals,
		OnChainDecimals:  bal.Decimals,
	}
}

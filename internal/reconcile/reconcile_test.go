package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ammcore/internal/amm"
	"ammcore/internal/model"
)

type stubReader struct {
	balances map[common.Address]model.TokenBalance
	err      error
}

func (s stubReader) BalanceOf(_ context.Context, token, holder common.Address, block *big.Int) (model.TokenBalance, error) {
	if s.err != nil {
		return model.TokenBalance{}, s.err
	}
	bal := s.balances[token]
	bal.Token = token
	bal.Holder = holder
	return bal, nil
}

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	vault  = common.HexToAddress("0x00000000000000000000000000000000000000f0")
)

func testPool() model.Pool {
	return model.Pool{
		ID:        common.HexToHash("0x01"),
		TokenA:    tokenA,
		TokenB:    tokenB,
		DecimalsA: 6,
		DecimalsB: 18,
		ReserveA:  1000,
		ReserveB:  910,
		Version:   3,
	}
}

func TestCheckSolventAndSurplus(t *testing.T) {
	reader := stubReader{balances: map[common.Address]model.TokenBalance{
		tokenA: {Decimals: 6, Balance: big.NewInt(1000)},
		tokenB: {Decimals: 18, Balance: big.NewInt(925)},
	}}

	report, err := New(reader, nil).Check(context.Background(), testPool(), vault, big.NewInt(77))
	require.NoError(t, err)
	require.Equal(t, uint64(77), report.Block)
	require.Equal(t, uint64(3), report.Version)
	require.Len(t, report.Assets, 2)

	require.Equal(t, StatusSolvent, report.Assets[0].Status)
	require.Equal(t, int64(0), report.Assets[0].Difference.Int64())
	require.Equal(t, StatusSurplus, report.Assets[1].Status)
	require.Equal(t, int64(15), report.Assets[1].Difference.Int64())

	require.True(t, report.Solvent())
	require.NoError(t, report.Err())
}

func TestCheckDeficit(t *testing.T) {
	reader := stubReader{balances: map[common.Address]model.TokenBalance{
		tokenA: {Decimals: 6, Balance: big.NewInt(999)},
		tokenB: {Decimals: 18, Balance: big.NewInt(910)},
	}}

	report, err := New(reader, nil).Check(context.Background(), testPool(), vault, nil)
	require.NoError(t, err)
	require.False(t, report.Solvent())
	require.Equal(t, StatusDeficit, report.Assets[0].Status)

	err = report.Err()
	require.ErrorIs(t, err, ErrDeficit)
	require.ErrorContains(t, err, "short by 1")
	require.False(t, errors.Is(err, amm.ErrInvalidPrecision))
}

func TestCheckDecimalsMismatch(t *testing.T) {
	reader := stubReader{balances: map[common.Address]model.TokenBalance{
		tokenA: {Decimals: 6, Balance: big.NewInt(1000)},
		tokenB: {Decimals: 8, Balance: big.NewInt(910)},
	}}

	report, err := New(reader, nil).Check(context.Background(), testPool(), vault, nil)
	require.NoError(t, err)
	require.True(t, report.Solvent())
	require.False(t, report.Assets[1].DecimalsMatch())
	require.ErrorIs(t, report.Err(), amm.ErrInvalidPrecision)
}

func TestCheckReaderError(t *testing.T) {
	_, err := New(stubReader{err: errors.New("rpc down")}, nil).Check(context.Background(), testPool(), vault, nil)
	require.ErrorContains(t, err, "rpc down")
}

func TestReportJSON(t *testing.T) {
	reader := stubReader{balances: map[common.Address]model.TokenBalance{
		tokenA: {Decimals: 6, Balance: big.NewInt(1000)},
		tokenB: {Decimals: 18, Balance: big.NewInt(910)},
	}}
	report, err := New(reader, nil).Check(context.Background(), testPool(), vault, nil)
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded struct {
		Assets []map[string]interface{} `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "a", decoded.Assets[0]["asset"])
	require.Equal(t, "1000", decoded.Assets[0]["reserve"])
	require.Equal(t, "solvent", decoded.Assets[0]["status"])
}

package custody

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ammcore/internal/model"
)

var (
	poolID = common.HexToHash("0xaa")
	alice  = common.HexToAddress("0xa1")
	bob    = common.HexToAddress("0xb0")
	vault  = common.HexToAddress("0xfe")
)

func TestSettleMovesBalances(t *testing.T) {
	l := NewLedger(nil)
	require.NoError(t, l.Credit(poolID, model.AssetA, alice, 100))

	err := l.Settle(context.Background(), []model.Transfer{
		{Pool: poolID, Asset: model.AssetA, From: alice, To: vault, Amount: 60},
		{Pool: poolID, Asset: model.AssetShare, To: alice, Amount: 60},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(40), l.Balance(Key{poolID, model.AssetA, alice}))
	require.Equal(t, uint64(60), l.Balance(Key{poolID, model.AssetA, vault}))
	require.Equal(t, uint64(60), l.Balance(Key{poolID, model.AssetShare, alice}))
	require.Equal(t, uint64(60), l.ShareSupply(poolID))

	err = l.Settle(context.Background(), []model.Transfer{
		{Pool: poolID, Asset: model.AssetShare, From: alice, Amount: 20},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(40), l.ShareSupply(poolID))
}

func TestSettleIsAllOrNothing(t *testing.T) {
	l := NewLedger(nil)
	require.NoError(t, l.Credit(poolID, model.AssetA, alice, 100))
	require.NoError(t, l.Credit(poolID, model.AssetB, alice, 5))

	err := l.Settle(context.Background(), []model.Transfer{
		{Pool: poolID, Asset: model.AssetA, From: alice, To: vault, Amount: 100},
		{Pool: poolID, Asset: model.AssetB, From: alice, To: vault, Amount: 6},
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(100), l.Balance(Key{poolID, model.AssetA, alice}))
	require.Equal(t, uint64(0), l.Balance(Key{poolID, model.AssetA, vault}))
	require.Equal(t, uint64(5), l.Balance(Key{poolID, model.AssetB, alice}))
}

func TestSettleChainedWithinBatch(t *testing.T) {
	l := NewLedger(nil)
	require.NoError(t, l.Credit(poolID, model.AssetA, alice, 10))

	// bob can spend what alice sends him earlier in the same batch.
	err := l.Settle(context.Background(), []model.Transfer{
		{Pool: poolID, Asset: model.AssetA, From: alice, To: bob, Amount: 10},
		{Pool: poolID, Asset: model.AssetA, From: bob, To: vault, Amount: 10},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(10), l.Balance(Key{poolID, model.AssetA, vault}))
	require.Equal(t, uint64(0), l.Balance(Key{poolID, model.AssetA, bob}))
}

func TestSettleRejects(t *testing.T) {
	l := NewLedger(nil)
	err := l.Settle(context.Background(), []model.Transfer{{Pool: poolID, Asset: model.AssetA, From: alice, To: alice, Amount: 1}})
	require.ErrorIs(t, err, ErrInvalidTransfer)

	require.ErrorIs(t, l.Credit(poolID, model.AssetShare, alice, 1), ErrInvalidTransfer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Settle(ctx, nil), context.Canceled)
}

func TestLedgerSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	l := NewLedger(nil)
	require.NoError(t, l.Credit(poolID, model.AssetA, alice, 1<<62))
	require.NoError(t, l.Settle(context.Background(), []model.Transfer{
		{Pool: poolID, Asset: model.AssetShare, To: bob, Amount: 7},
	}))
	require.NoError(t, l.Save(path))

	loaded := NewLedger(nil)
	require.NoError(t, loaded.Load(path))
	require.Equal(t, uint64(1<<62), loaded.Balance(Key{poolID, model.AssetA, alice}))
	require.Equal(t, uint64(7), loaded.Balance(Key{poolID, model.AssetShare, bob}))
	require.Equal(t, uint64(7), loaded.ShareSupply(poolID))

	empty := NewLedger(nil)
	require.NoError(t, empty.Load(filepath.Join(t.TempDir(), "missing.json")))
}

func TestLedgerSaveRejectsStaleSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	seed := NewLedger(nil)
	require.NoError(t, seed.Credit(poolID, model.AssetA, vault, 1000))
	require.NoError(t, seed.Save(path))

	// Two runs load the same snapshot; the first save wins.
	first, second := NewLedger(nil), NewLedger(nil)
	require.NoError(t, first.Load(path))
	require.NoError(t, second.Load(path))

	require.NoError(t, first.Credit(poolID, model.AssetA, vault, 100))
	require.NoError(t, first.Save(path))
	require.NoError(t, first.Save(path))

	err := second.Save(path)
	require.ErrorIs(t, err, ErrStaleSnapshot)

	reloaded := NewLedger(nil)
	require.NoError(t, reloaded.Load(path))
	require.Equal(t, uint64(1100), reloaded.Balance(Key{poolID, model.AssetA, vault}))

	// A fresh ledger cannot overwrite an existing file either.
	require.ErrorIs(t, NewLedger(nil).Save(path), ErrStaleSnapshot)
}

func TestLockFileIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	held, err := LockFile(context.Background(), path, time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = LockFile(ctx, path, time.Millisecond)
	require.ErrorIs(t, err, ErrLedgerBusy)

	require.NoError(t, held.Release())
	require.NoError(t, held.Release())

	again, err := LockFile(context.Background(), path, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestLockFileWaitsForRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	held, err := LockFile(context.Background(), path, time.Millisecond)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lock, err := LockFile(ctx, path, time.Millisecond)
		if err == nil {
			err = lock.Release()
		}
		acquired <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, held.Release())
	require.NoError(t, <-acquired)
}

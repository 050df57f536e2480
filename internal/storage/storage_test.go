package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/model"
)

type poolStore interface {
	LoadPool(ctx context.Context, id common.Hash) (model.Pool, error)
	CommitPool(ctx context.Context, pool model.Pool, prevVersion uint64) error
	ListPools(ctx context.Context) ([]model.Pool, error)
}

func testPool(seed uint64) model.Pool {
	tokenA := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB := common.HexToAddress("0x2222222222222222222222222222222222222222")
	auth := common.HexToAddress("0x3333333333333333333333333333333333333333")
	return model.Pool{
		ID:          model.PoolID(seed, tokenA, tokenB, auth),
		Seed:        seed,
		TokenA:      tokenA,
		TokenB:      tokenB,
		DecimalsA:   6,
		DecimalsB:   18,
		ReserveA:    1000,
		ReserveB:    2000,
		TotalShares: 1000,
		FeeBps:      30,
		Authority:   auth,
		Version:     1,
		CreatedAt:   time.Unix(1_700_000_000, 0).UTC(),
		UpdatedAt:   time.Unix(1_700_000_000, 0).UTC(),
	}
}

func samePool(a, b model.Pool) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) || !a.UpdatedAt.Equal(b.UpdatedAt) {
		return false
	}
	a.CreatedAt, a.UpdatedAt = b.CreatedAt, b.UpdatedAt
	return a == b
}

func exerciseStore(t *testing.T, store poolStore) {
	t.Helper()
	ctx := context.Background()
	pool := testPool(1)

	if _, err := store.LoadPool(ctx, pool.ID); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("load missing: %v", err)
	}
	if err := store.CommitPool(ctx, pool, 1); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := store.CommitPool(ctx, pool, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CommitPool(ctx, pool, 0); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("create twice: %v", err)
	}

	loaded, err := store.LoadPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !samePool(loaded, pool) {
		t.Fatalf("loaded %+v, want %+v", loaded, pool)
	}

	next := pool
	next.ReserveA = 1100
	next.Version = 2
	if err := store.CommitPool(ctx, next, 1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stale := pool
	stale.ReserveA = 1
	stale.Version = 2
	if err := store.CommitPool(ctx, stale, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale commit: %v", err)
	}
	loaded, err = store.LoadPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ReserveA != 1100 || loaded.Version != 2 {
		t.Fatalf("stale commit leaked: %+v", loaded)
	}

	if err := store.CommitPool(ctx, testPool(2), 0); err != nil {
		t.Fatalf("create second: %v", err)
	}
	pools, err := store.ListPools(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("list returned %d pools", len(pools))
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	exerciseStore(t, store)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	pools, err := reopened.ListPools(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("reopened store has %d pools", len(pools))
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("leftover tmp files: %v", matches)
	}
}

func TestJsonlStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "events.jsonl")
	sink := NewJsonlStorage(path)

	pool := testPool(1)
	first := model.NewPoolEvent(model.EventInitialize, pool, pool.Authority)
	first.AmountA, first.AmountB, first.Shares = 1000, 2000, 1000
	second := model.NewPoolEvent(model.EventSwap, pool, pool.Authority)
	second.AmountIn, second.AmountOut = 10, 19

	if err := sink.PutEventBatch([]model.PoolEvent{first}); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := sink.PutEventBatch([]model.PoolEvent{second}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := sink.PutEventBatch(nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	_, _ = f.WriteString("{not json}\n\n")
	_ = f.Close()

	var got []model.PoolEvent
	var bad []int
	err = ScanEvents(path, func(ev model.PoolEvent) error {
		got = append(got, ev)
		return nil
	}, func(line int, _ error) {
		bad = append(bad, line)
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("scanned %+v", got)
	}
	if len(bad) != 1 || bad[0] != 3 {
		t.Fatalf("bad lines %v", bad)
	}
}

// Package custody keeps token balances for accounts and pool vaults.
package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammcore/internal/fixedpoint"
	"ammcore/internal/model"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransfer   = errors.New("invalid transfer")
	ErrStaleSnapshot     = errors.New("ledger snapshot changed since load")
)

// Key addresses one balance: an account's holding of one asset of one pool.
type Key struct {
	Pool    common.Hash
	Asset   model.Asset
	Account common.Address
}

// Ledger is an in-memory balance book. Settle is all-or-nothing.
type Ledger struct {
	mu       sync.Mutex
	balances map[Key]uint64
	supply   map[common.Hash]uint64
	// version of the snapshot last loaded or saved.
	version uint64
	logger  *zap.Logger
}

func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		balances: make(map[Key]uint64),
		supply:   make(map[common.Hash]uint64),
		logger:   logger,
	}
}

// Balance returns the balance held under key.
func (l *Ledger) Balance(key Key) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[key]
}

// ShareSupply returns the share tokens in circulation for a pool.
func (l *Ledger) ShareSupply(pool common.Hash) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply[pool]
}

// Credit adds amount of a pool token to account, outside of any pool
// operation. Share tokens cannot be credited.
func (l *Ledger) Credit(pool common.Hash, asset model.Asset, account common.Address, amount uint64) error {
	if asset == model.AssetShare {
		return fmt.Errorf("%w: shares are only minted by deposits", ErrInvalidTransfer)
	}
	return l.Settle(context.Background(), []model.Transfer{{Pool: pool, Asset: asset, To: account, Amount: amount}})
}

// Settle applies transfers in order. Either every transfer is applied or the
// ledger is left unchanged.
func (l *Ledger) Settle(ctx context.Context, transfers []model.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	// Stage on a copy of the touched balances.
	staged := make(map[Key]uint64)
	supply := make(map[common.Hash]uint64)
	get := func(k Key) uint64 {
		if v, ok := staged[k]; ok {
			return v
		}
		return l.balances[k]
	}
	getSupply := func(id common.Hash) uint64 {
		if v, ok := supply[id]; ok {
			return v
		}
		return l.supply[id]
	}

	for i, t := range transfers {
		if t.Amount == 0 {
			continue
		}
		if t.From == t.To {
			return fmt.Errorf("%w: transfer %d moves to itself", ErrInvalidTransfer, i)
		}
		mint := t.From == (common.Address{})
		burn := t.To == (common.Address{})

		if !mint {
			from := Key{Pool: t.Pool, Asset: t.Asset, Account: t.From}
			bal := get(from)
			next, err := fixedpoint.Sub(bal, t.Amount)
			if err != nil {
				return fmt.Errorf("%w: %s holds %d %s, needs %d", ErrInsufficientFunds, t.From.Hex(), bal, t.Asset, t.Amount)
			}
			staged[from] = next
		}
		if !burn {
			to := Key{Pool: t.Pool, Asset: t.Asset, Account: t.To}
			next, err := fixedpoint.Add(get(to), t.Amount)
			if err != nil {
				return fmt.Errorf("%w: balance of %s overflows", ErrInvalidTransfer, t.To.Hex())
			}
			staged[to] = next
		}
		if t.Asset == model.AssetShare {
			s := getSupply(t.Pool)
			var err error
			switch {
			case mint:
				s, err = fixedpoint.Add(s, t.Amount)
			case burn:
				s, err = fixedpoint.Sub(s, t.Amount)
			}
			if err != nil {
				return fmt.Errorf("%w: share supply of %s", ErrInvalidTransfer, t.Pool.Hex())
			}
			supply[t.Pool] = s
		}
	}

	for k, v := range staged {
		if v == 0 {
			delete(l.balances, k)
			continue
		}
		l.balances[k] = v
	}
	for id, v := range supply {
		l.supply[id] = v
	}
	l.logger.Debug("settled", zap.Int("transfers", len(transfers)))
	return nil
}

type snapshotEntry struct {
	Pool    common.Hash    `json:"pool"`
	Asset   model.Asset    `json:"asset"`
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount,string"`
}

type snapshot struct {
	// Version counts saves of the file.
	Version  uint64          `json:"version"`
	Balances []snapshotEntry `json:"balances"`
}

// Save writes the ledger to path as JSON. It fails with ErrStaleSnapshot when
// the file was rewritten after this ledger last loaded or saved it.
func (l *Ledger) Save(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := readSnapshot(path)
	if err != nil {
		return err
	}
	if current.Version != l.version {
		return fmt.Errorf("%w: %s is at version %d, this ledger holds version %d", ErrStaleSnapshot, path, current.Version, l.version)
	}

	snap := snapshot{Version: l.version + 1, Balances: make([]snapshotEntry, 0, len(l.balances))}
	for k, v := range l.balances {
		snap.Balances = append(snap.Balances, snapshotEntry{Pool: k.Pool, Asset: k.Asset, Account: k.Account, Amount: v})
	}
	sort.Slice(snap.Balances, func(i, j int) bool {
		a, b := snap.Balances[i], snap.Balances[j]
		if a.Pool != b.Pool {
			return a.Pool.Hex() < b.Pool.Hex()
		}
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		return a.Account.Hex() < b.Account.Hex()
	})

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename ledger: %w", err)
	}
	l.version = snap.Version
	return nil
}

// Load replaces the ledger contents with the snapshot at path. A missing file
// leaves the ledger empty.
func (l *Ledger) Load(path string) error {
	snap, err := readSnapshot(path)
	if err != nil {
		return err
	}

	balances := make(map[Key]uint64, len(snap.Balances))
	supply := make(map[common.Hash]uint64)
	for _, e := range snap.Balances {
		balances[Key{Pool: e.Pool, Asset: e.Asset, Account: e.Account}] = e.Amount
		if e.Asset == model.AssetShare {
			s, err := fixedpoint.Add(supply[e.Pool], e.Amount)
			if err != nil {
				return fmt.Errorf("share supply of %s overflows", e.Pool.Hex())
			}
			supply[e.Pool] = s
		}
	}

	l.mu.Lock()
	l.balances = balances
	l.supply = supply
	l.version = snap.Version
	l.mu.Unlock()
	return nil
}

// readSnapshot returns the empty version 0 snapshot for a missing file.
func readSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snapshot{}, nil
		}
		return snapshot{}, fmt.Errorf("read ledger: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot{}, fmt.Errorf("parse ledger: %w", err)
	}
	return snap, nil
}

// Package amm runs pool operations: it validates a request, prices it with
// the curve package, settles custody and commits the new pool state as one
// unit.
package amm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammcore/internal/model"
	"ammcore/internal/storage"
)

// PoolStore persists pool state. CommitPool must fail with
// storage.ErrVersionConflict unless the stored version equals prevVersion, and
// with storage.ErrPoolExists when prevVersion is zero and the pool exists.
type PoolStore interface {
	LoadPool(ctx context.Context, id common.Hash) (model.Pool, error)
	CommitPool(ctx context.Context, pool model.Pool, prevVersion uint64) error
	ListPools(ctx context.Context) ([]model.Pool, error)
}

// Custodian moves token balances. Settle applies every transfer or none.
type Custodian interface {
	Settle(ctx context.Context, transfers []model.Transfer) error
}

// EventSink receives events of committed operations.
type EventSink interface {
	PutEventBatch(events []model.PoolEvent) error
}

// Observer is notified of every operation outcome.
type Observer interface {
	ObserveOperation(op string, outcome string, elapsed time.Duration)
	ObservePool(pool model.Pool)
}

// Config controls engine behavior.
type Config struct {
	// InitialShareScale multiplies the first deposit of token A into the
	// initial share supply.
	InitialShareScale uint64
	Now               func() time.Time
	Observer          Observer
}

// Engine executes pool operations. Operations on one pool are serialized.
type Engine struct {
	cfg     Config
	store   PoolStore
	custody Custodian
	events  EventSink
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[common.Hash]*sync.Mutex
}

func NewEngine(cfg Config, store PoolStore, custody Custodian, events EventSink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InitialShareScale == 0 {
		cfg.InitialShareScale = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		custody: custody,
		events:  events,
		logger:  logger,
		locks:   make(map[common.Hash]*sync.Mutex),
	}
}

// mutation is the outcome of computing an operation against a pool snapshot.
type mutation struct {
	next      model.Pool
	transfers []model.Transfer
	events    []model.PoolEvent
}

type computeFunc func(current model.Pool, found bool) (mutation, error)

// execute runs one operation: load, compute on a copy, settle, commit,
// publish. Nothing is persisted unless every step succeeds.
func (e *Engine) execute(ctx context.Context, op string, id common.Hash, caller common.Address, compute computeFunc) (model.Pool, error) {
	start := time.Now()
	lock := e.poolLock(id)
	lock.Lock()
	defer lock.Unlock()

	pool, err := e.run(ctx, id, compute)
	e.observe(op, id, caller, start, err)
	if err != nil {
		return model.Pool{}, err
	}
	e.cfg.Observer.ObservePool(pool)
	return pool, nil
}

func (e *Engine) run(ctx context.Context, id common.Hash, compute computeFunc) (model.Pool, error) {
	current, err := e.store.LoadPool(ctx, id)
	found := true
	if err != nil {
		if !errors.Is(err, storage.ErrPoolNotFound) {
			return model.Pool{}, fmt.Errorf("load pool: %w", err)
		}
		found = false
	}

	m, err := compute(current, found)
	if err != nil {
		return model.Pool{}, err
	}
	if err := checkReserves(m.next); err != nil {
		return model.Pool{}, err
	}

	now := e.cfg.Now().UTC()
	m.next.Version = current.Version + 1
	m.next.UpdatedAt = now
	if !found {
		m.next.CreatedAt = now
	}

	if len(m.transfers) > 0 {
		if err := e.custody.Settle(ctx, m.transfers); err != nil {
			return model.Pool{}, fmt.Errorf("settle transfers: %w", err)
		}
	}
	if err := e.store.CommitPool(ctx, m.next, current.Version); err != nil {
		e.compensate(ctx, id, m.transfers)
		return model.Pool{}, fmt.Errorf("commit pool: %w", err)
	}

	if e.events != nil && len(m.events) > 0 {
		for i := range m.events {
			fillEvent(&m.events[i], m.next)
		}
		if err := e.events.PutEventBatch(m.events); err != nil {
			// Committed state stands even when the journal write fails.
			e.logger.Error("publish events", zap.String("pool", id.Hex()), zap.Error(err))
		}
	}
	return m.next, nil
}

// compensate undoes settled transfers after a failed commit.
func (e *Engine) compensate(ctx context.Context, id common.Hash, transfers []model.Transfer) {
	if len(transfers) == 0 {
		return
	}
	reversed := make([]model.Transfer, 0, len(transfers))
	for i := len(transfers) - 1; i >= 0; i-- {
		reversed = append(reversed, transfers[i].Reverse())
	}
	if err := e.custody.Settle(ctx, reversed); err != nil {
		e.logger.Error("compensate transfers", zap.String("pool", id.Hex()), zap.Int("transfers", len(reversed)), zap.Error(err))
	}
}

func (e *Engine) observe(op string, id common.Hash, caller common.Address, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if code, ok := CodeOf(err); ok {
			outcome = code.String()
		}
		e.logger.Debug("operation rejected",
			zap.String("op", op),
			zap.String("pool", id.Hex()),
			zap.String("caller", caller.Hex()),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
	e.cfg.Observer.ObserveOperation(op, outcome, elapsed)
}

func (e *Engine) poolLock(id common.Hash) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

func fillEvent(ev *model.PoolEvent, pool model.Pool) {
	ev.PoolID = pool.ID
	ev.Version = pool.Version
	ev.Timestamp = uint64(pool.UpdatedAt.Unix())
	ev.FeeBps = pool.FeeBps
	ev.ReserveA = pool.ReserveA
	ev.ReserveB = pool.ReserveB
	ev.TotalShares = pool.TotalShares
}

func checkReserves(p model.Pool) error {
	if p.TotalShares > 0 && (p.ReserveA == 0 || p.ReserveB == 0) {
		return newError(CodeZeroBalance, "pool has %d shares over reserves %d/%d", p.TotalShares, p.ReserveA, p.ReserveB)
	}
	return nil
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}
func (nopObserver) ObservePool(model.Pool)                          {}

// Package aggregate folds the pool event journal into fixed time windows.
package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammcore/internal/model"
	"ammcore/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// MetricsSink receives finished windows.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// PoolSource resolves pool scales for rendering amounts.
type PoolSource interface {
	LoadPool(ctx context.Context, id common.Hash) (model.Pool, error)
}

// Summary counts what a run did.
type Summary struct {
	Total   int `json:"total"`
	Windows int `json:"windows"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Aggregator aggregates pool events into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	pools        PoolSource
	logger       *zap.Logger
	decimals     map[common.Hash][2]uint8
	accumulators map[common.Hash]*Accumulator
	safeTs       uint64
}

func NewAggregator(cfg Config, sink MetricsSink, pools PoolSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		pools:        pools,
		logger:       logger,
		decimals:     make(map[common.Hash][2]uint8),
		accumulators: make(map[common.Hash]*Accumulator),
	}
}

// Run executes aggregation over a pool event journal.
func (a *Aggregator) Run(ctx context.Context, journalPath string) (Summary, error) {
	var sum Summary
	if a.sink == nil {
		return sum, fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return sum, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return sum, err
	}
	a.safeTs = startTs

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)

	err = storage.ScanEvents(journalPath, func(ev model.PoolEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Total++

		if ev.Timestamp <= startTs {
			sum.Skipped++
			return nil
		}

		start := windowStart(ev.Timestamp, a.cfg.WindowSeconds)
		acc := a.accumulators[ev.PoolID]
		switch {
		case acc == nil:
			acc = NewAccumulator(ev, start, start+a.cfg.WindowSeconds)
			a.accumulators[ev.PoolID] = acc
		case start > acc.WindowStart:
			metrics, err := a.flushAccumulator(ctx, acc)
			if err != nil {
				return err
			}
			batch = append(batch, metrics)
			acc = NewAccumulator(ev, start, start+a.cfg.WindowSeconds)
			a.accumulators[ev.PoolID] = acc
		case start < acc.WindowStart:
			// Commits on different pools may reach the journal slightly out
			// of timestamp order; a late event joins the open window.
			a.logger.Debug("late event", zap.String("pool", ev.PoolID.Hex()), zap.Uint64("ts", ev.Timestamp))
		}

		acc.AddEvent(ev)

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			sum.Windows += len(batch)
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	}, func(line int, err error) {
		sum.Failed++
		a.logger.Warn("decode pool event", zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return sum, err
	}

	ids := make([]common.Hash, 0, len(a.accumulators))
	for id := range a.accumulators {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	for _, id := range ids {
		metrics, err := a.flushAccumulator(ctx, a.accumulators[id])
		if err != nil {
			return sum, err
		}
		batch = append(batch, metrics)
	}

	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return sum, err
		}
		sum.Windows += len(batch)
	}

	// The last window of each pool may still be open; the next run
	// recomputes it from its first event.
	if err := a.saveState(ctx); err != nil {
		return sum, err
	}
	a.accumulators = make(map[common.Hash]*Accumulator)

	a.logger.Info("aggregate complete",
		zap.Int("total", sum.Total),
		zap.Int("windows", sum.Windows),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)

	return sum, nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return beforeWindow(windowStart(a.cfg.RecomputeFrom, a.cfg.WindowSeconds)), nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	if open := minOpenWindowStart(a.accumulators); open > 0 {
		a.safeTs = beforeWindow(open)
	}
	return a.cfg.StateStore.Save(ctx, a.safeTs)
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) (model.PoolWindowMetrics, error) {
	decA, decB := a.poolDecimals(ctx, common.HexToHash(acc.PoolID))

	feeRateA, feeRateB := computeFeeRates(acc.FeeA, acc.FeeB, acc.ReserveA, acc.ReserveB)
	apr := computeAPR(acc.FeeA, acc.FeeB, acc.ReserveA, acc.ReserveB, a.cfg.WindowSeconds)

	return model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		VolumeA:        formatTokenAmount(acc.VolumeA, decA),
		VolumeB:        formatTokenAmount(acc.VolumeB, decB),
		FeeA:           formatFeeAmount(acc.FeeA, decA),
		FeeB:           formatFeeAmount(acc.FeeB, decB),
		ReserveA:       formatTokenAmount(new(big.Int).SetUint64(acc.ReserveA), decA),
		ReserveB:       formatTokenAmount(new(big.Int).SetUint64(acc.ReserveB), decB),
		TotalShares:    formatTokenAmount(new(big.Int).SetUint64(acc.TotalShares), 0),
		FeeRateA:       feeRateA,
		FeeRateB:       feeRateB,
		APR:            apr,
	}, nil
}

// poolDecimals falls back to raw units when the pool cannot be resolved.
func (a *Aggregator) poolDecimals(ctx context.Context, id common.Hash) (uint8, uint8) {
	if d, ok := a.decimals[id]; ok {
		return d[0], d[1]
	}
	var d [2]uint8
	if a.pools != nil {
		pool, err := a.pools.LoadPool(ctx, id)
		if err != nil {
			a.logger.Warn("pool decimals", zap.String("pool", id.Hex()), zap.Error(err))
		} else {
			d = [2]uint8{pool.DecimalsA, pool.DecimalsB}
		}
	}
	a.decimals[id] = d
	return d[0], d[1]
}

// JSONSink writes each window as one JSON line.
type JSONSink struct {
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	for _, m := range metrics {
		if err := s.enc.Encode(m); err != nil {
			return fmt.Errorf("write window metrics: %w", err)
		}
	}
	return nil
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func beforeWindow(start uint64) uint64 {
	if start == 0 {
		return 0
	}
	return start - 1
}

func minOpenWindowStart(acc map[common.Hash]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}


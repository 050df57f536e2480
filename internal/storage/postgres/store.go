package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammcore/internal/model"
	"ammcore/internal/storage"
)

// Store provides Postgres persistence for pools, events and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const poolColumns = `id, seed, token_a, token_b, decimals_a, decimals_b, reserve_a, reserve_b,
	total_shares, fee_bps, locked, authority, version, created_at, updated_at`

// selectColumns renders NUMERIC columns as text so they scan into uint64
// without a float detour.
const selectColumns = `id, seed::text, token_a, token_b, decimals_a, decimals_b, reserve_a::text, reserve_b::text,
	total_shares::text, fee_bps, locked, authority, version, created_at, updated_at`

// LoadPool reads one pool by id.
func (s *Store) LoadPool(ctx context.Context, id common.Hash) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM amm_pools WHERE id=$1`, id.Hex())
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, storage.ErrPoolNotFound
		}
		return model.Pool{}, fmt.Errorf("load pool: %w", err)
	}
	return pool, nil
}

// CommitPool inserts a new pool when prevVersion is zero, otherwise updates
// the row only if its version is still prevVersion.
func (s *Store) CommitPool(ctx context.Context, p model.Pool, prevVersion uint64) error {
	if prevVersion == 0 {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO amm_pools (`+poolColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id) DO NOTHING
		`,
			p.ID.Hex(),
			numeric(p.Seed),
			p.TokenA.Hex(),
			p.TokenB.Hex(),
			int16(p.DecimalsA),
			int16(p.DecimalsB),
			numeric(p.ReserveA),
			numeric(p.ReserveB),
			numeric(p.TotalShares),
			int32(p.FeeBps),
			p.Locked,
			p.Authority.Hex(),
			int64(p.Version),
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert pool: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrPoolExists
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE amm_pools SET
			reserve_a = $2,
			reserve_b = $3,
			total_shares = $4,
			fee_bps = $5,
			locked = $6,
			version = $7,
			updated_at = $8
		WHERE id = $1 AND version = $9
	`,
		p.ID.Hex(),
		numeric(p.ReserveA),
		numeric(p.ReserveB),
		numeric(p.TotalShares),
		int32(p.FeeBps),
		p.Locked,
		int64(p.Version),
		p.UpdatedAt,
		int64(prevVersion),
	)
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.LoadPool(ctx, p.ID); err != nil {
			return err
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// ListPools returns all pools ordered by id.
func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM amm_pools ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, pool)
	}
	return out, rows.Err()
}

// PutEventBatch stores committed pool events.
func (s *Store) PutEventBatch(events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	ctx := context.Background()
	batch := &pgx.Batch{}
	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal pool event: %w", err)
		}
		batch.Queue(`
			INSERT INTO amm_pool_events (pool_id, version, seq, kind, caller, ts, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (pool_id, version, seq) DO NOTHING
		`,
			ev.PoolID.Hex(),
			int64(ev.Version),
			int16(i),
			string(ev.Kind),
			ev.Caller.Hex(),
			int64(ev.Timestamp),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert pool event: %w", err)
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count, volume_a, volume_b, fee_a, fee_b,
				reserve_a, reserve_b, total_shares, fee_rate_a, fee_rate_b, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				total_shares = EXCLUDED.total_shares,
				fee_rate_a = EXCLUDED.fee_rate_a,
				fee_rate_b = EXCLUDED.fee_rate_b,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.VolumeA,
			m.VolumeB,
			m.FeeA,
			m.FeeB,
			m.ReserveA,
			m.ReserveB,
			m.TotalShares,
			m.FeeRateA,
			m.FeeRateB,
			m.APR,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func scanPool(row pgx.Row) (model.Pool, error) {
	var (
		p                                     model.Pool
		id, tokenA, tokenB, authority         string
		seed, reserveA, reserveB, totalShares string
		decimalsA, decimalsB                  int16
		feeBps                                int32
		version                               int64
	)
	err := row.Scan(&id, &seed, &tokenA, &tokenB, &decimalsA, &decimalsB, &reserveA, &reserveB,
		&totalShares, &feeBps, &p.Locked, &authority, &version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Pool{}, err
	}

	p.ID = common.HexToHash(id)
	p.TokenA = common.HexToAddress(tokenA)
	p.TokenB = common.HexToAddress(tokenB)
	p.Authority = common.HexToAddress(authority)
	p.DecimalsA = uint8(decimalsA)
	p.DecimalsB = uint8(decimalsB)
	p.FeeBps = uint16(feeBps)
	p.Version = uint64(version)
	for _, f := range []struct {
		dst *uint64
		src string
	}{{&p.Seed, seed}, {&p.ReserveA, reserveA}, {&p.ReserveB, reserveB}, {&p.TotalShares, totalShares}} {
		v, err := strconv.ParseUint(f.src, 10, 64)
		if err != nil {
			return model.Pool{}, fmt.Errorf("parse numeric %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return p, nil
}

// numeric encodes a uint64 for a NUMERIC column. Values above the int64
// range have no native pgx binding.
func numeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS amm_pools (
	id            TEXT PRIMARY KEY,
	seed          NUMERIC(20, 0) NOT NULL,
	token_a       TEXT NOT NULL,
	token_b       TEXT NOT NULL,
	decimals_a    SMALLINT NOT NULL,
	decimals_b    SMALLINT NOT NULL,
	reserve_a     NUMERIC(20, 0) NOT NULL,
	reserve_b     NUMERIC(20, 0) NOT NULL,
	total_shares  NUMERIC(20, 0) NOT NULL,
	fee_bps       INTEGER NOT NULL,
	locked        BOOLEAN NOT NULL DEFAULT false,
	authority     TEXT NOT NULL,
	version       BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS amm_pool_events (
	pool_id       TEXT NOT NULL,
	version       BIGINT NOT NULL,
	seq           SMALLINT NOT NULL,
	kind          TEXT NOT NULL,
	caller        TEXT NOT NULL,
	ts            BIGINT NOT NULL,
	payload       JSONB NOT NULL,
	PRIMARY KEY (pool_id, version, seq)
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_id             TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	deposit_count       BIGINT NOT NULL,
	withdraw_count      BIGINT NOT NULL,
	volume_a            NUMERIC NOT NULL,
	volume_b            NUMERIC NOT NULL,
	fee_a               NUMERIC NOT NULL,
	fee_b               NUMERIC NOT NULL,
	reserve_a           NUMERIC NOT NULL,
	reserve_b           NUMERIC NOT NULL,
	total_shares        NUMERIC NOT NULL,
	fee_rate_a          NUMERIC,
	fee_rate_b          NUMERIC,
	apr                 NUMERIC,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pool_id, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS aggregator_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables the store uses when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

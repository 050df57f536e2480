package aggregate

import (
	"context"
	"fmt"
)

type stateDB interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, ts uint64) error
}

// DBStateStore stores state in the aggregator_state table, one row per
// window size.
type DBStateStore struct {
	db   stateDB
	name string
}

func NewDBStateStore(db stateDB, windowSeconds uint64) *DBStateStore {
	return &DBStateStore{db: db, name: fmt.Sprintf("pool_window_metrics:%d", windowSeconds)}
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, nil
	}
	return s.db.LoadState(ctx, s.name)
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.SaveState(ctx, s.name, ts)
}

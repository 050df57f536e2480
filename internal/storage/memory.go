package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/model"
)

// MemoryStore keeps pools in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	pools map[common.Hash]model.Pool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pools: make(map[common.Hash]model.Pool)}
}

func (s *MemoryStore) LoadPool(_ context.Context, id common.Hash) (model.Pool, error) {
	s.mu.RLock()
	pool, ok := s.pools[id]
	s.mu.RUnlock()
	if !ok {
		return model.Pool{}, ErrPoolNotFound
	}
	return pool, nil
}

func (s *MemoryStore) CommitPool(_ context.Context, pool model.Pool, prevVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.pools[pool.ID]
	if err := checkVersion(stored, ok, prevVersion); err != nil {
		return err
	}
	s.pools[pool.ID] = pool
	return nil
}

func (s *MemoryStore) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	out := make([]model.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		out = append(out, pool)
	}
	s.mu.RUnlock()
	sortPools(out)
	return out, nil
}

func sortPools(pools []model.Pool) {
	sort.Slice(pools, func(i, j int) bool {
		return bytes.Compare(pools[i].ID[:], pools[j].ID[:]) < 0
	})
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/model"
)

// FileStore keeps one JSON file per pool under a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) LoadPool(_ context.Context, id common.Hash) (model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, ok, err := s.read(id)
	if err != nil {
		return model.Pool{}, err
	}
	if !ok {
		return model.Pool{}, ErrPoolNotFound
	}
	return pool, nil
}

func (s *FileStore) CommitPool(_ context.Context, pool model.Pool, prevVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok, err := s.read(pool.ID)
	if err != nil {
		return err
	}
	if err := checkVersion(stored, ok, prevVersion); err != nil {
		return err
	}

	data, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}
	path := s.path(pool.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write pool tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename pool: %w", err)
	}
	return nil
}

func (s *FileStore) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read state dir: %w", err)
	}
	out := make([]model.Pool, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := model.ParsePoolID(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		pool, ok, err := s.read(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pool)
		}
	}
	sortPools(out)
	return out, nil
}

func (s *FileStore) read(id common.Hash) (model.Pool, bool, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, fmt.Errorf("read pool: %w", err)
	}
	var pool model.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return model.Pool{}, false, fmt.Errorf("parse pool %s: %w", id.Hex(), err)
	}
	return pool, true, nil
}

func (s *FileStore) path(id common.Hash) string {
	return filepath.Join(s.dir, id.Hex()+".json")
}

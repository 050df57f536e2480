// Package storage persists pools and the event journal.
package storage

import (
	"errors"

	"ammcore/internal/model"
)

var (
	ErrPoolNotFound    = errors.New("pool not found")
	ErrPoolExists      = errors.New("pool already exists")
	ErrVersionConflict = errors.New("pool version conflict")
)

// checkVersion enforces the commit rule shared by every store: prevVersion 0
// creates, anything else must match the stored version.
func checkVersion(stored model.Pool, exists bool, prevVersion uint64) error {
	if prevVersion == 0 {
		if exists {
			return ErrPoolExists
		}
		return nil
	}
	if !exists {
		return ErrPoolNotFound
	}
	if stored.Version != prevVersion {
		return ErrVersionConflict
	}
	return nil
}

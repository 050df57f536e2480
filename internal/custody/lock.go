package custody

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrLedgerBusy = errors.New("ledger is locked by another process")

// FileLock holds a ledger snapshot exclusively through a sibling ".lock"
// file created with O_EXCL.
type FileLock struct {
	path string
}

// LockFile acquires the lock for the snapshot at path, polling every poll
// until ctx is done. A lock left behind by a crashed process must be removed
// by hand.
func LockFile(ctx context.Context, path string, poll time.Duration) (*FileLock, error) {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	lockPath := path + ".lock"
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if err := errors.Join(werr, cerr); err != nil {
				_ = os.Remove(lockPath)
				return nil, fmt.Errorf("write ledger lock: %w", err)
			}
			return &FileLock{path: lockPath}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create ledger lock: %w", err)
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s (%v)", ErrLedgerBusy, lockPath, ctx.Err())
		case <-timer.C:
		}
	}
}

// Release removes the lock file. Releasing twice is a no-op.
func (l *FileLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove ledger lock: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

const lockRetryDelay = 50 * time.Millisecond

// fileLock serializes read-modify-write cycles both between goroutines
// (mutex) and between processes (advisory lock on a sidecar file).
type fileLock struct {
	mu    sync.Mutex
	flock *flock.Flock
}

func newFileLock(path string) *fileLock {
	return &fileLock{flock: flock.New(path)}
}

func (l *fileLock) lock(ctx context.Context) (func(), error) {
	l.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0755); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	ok, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		l.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("lock %s not acquired", l.flock.Path())
		}
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	return func() {
		l.flock.Unlock()
		l.mu.Unlock()
	}, nil
}

// writeJSONAtomic replaces path with the indented encoding of v. The file is
// written to a temp file, fsynced and renamed, so readers never see a torn
// write and a failure leaves the previous content intact.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating dir: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// moveAside renames a malformed file to a fresh path.corrupt.<nanos> name
// so earlier quarantined copies are never overwritten. It returns the new
// path.
func moveAside(path string) (string, error) {
	stamp := time.Now().UnixNano()
	for {
		aside := fmt.Sprintf("%s.corrupt.%d", path, stamp)
		if _, err := os.Lstat(aside); os.IsNotExist(err) {
			if err := os.Rename(path, aside); err != nil {
				return "", err
			}
			return aside, nil
		}
		stamp++
	}
}

package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	processedSuffix = ".processed"
	claimsDir       = ".claims"
)

// FileStore keeps one marker file per processed batch. Claims combine an
// in-process set with a per-key file lock so two processes sharing the
// directory cannot both treat a batch as new.
type FileStore struct {
	dir    string
	claims *claimSet
}

// NewFileStore creates the marker directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, claimsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create marker dir: %w", err)
	}
	return &FileStore{dir: dir, claims: newClaimSet()}, nil
}

// Location returns the marker file path for key.
func (s *FileStore) Location(key string) string {
	return filepath.Join(s.dir, key+processedSuffix)
}

// Has reports whether the marker file exists.
func (s *FileStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.Location(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Claim takes the in-process claim and the key's file lock without blocking.
func (s *FileStore) Claim(key string) (func(), error) {
	if !s.claims.acquire(key) {
		return nil, ErrClaimed
	}
	lockPath := filepath.Join(s.dir, claimsDir, key+".lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		s.claims.drop(key)
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !locked {
		s.claims.drop(key)
		return nil, ErrClaimed
	}
	return func() {
		// Once the marker exists every later claimer sees it on its re-check,
		// so the lock file can go while it is still held.
		if done, _ := s.Has(context.Background(), key); done {
			_ = os.Remove(lockPath)
		}
		_ = lock.Unlock()
		s.claims.drop(key)
	}, nil
}

// Write stores the marker atomically: temp file, fsync, rename.
func (s *FileStore) Write(ctx context.Context, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".marker-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.Location(m.Key)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Delete removes the marker file.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.Location(key))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, key)
	}
	return err
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

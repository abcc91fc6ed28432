package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps markers in a processed_markers table. Claims are held in
// process only; the daemon lock keeps a single writer per data directory.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	claims *claimSet
}

// OpenSQLite opens or creates the marker database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create marker db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &SQLiteStore{db: db, path: path, claims: newClaimSet()}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS processed_markers (
	fingerprint TEXT PRIMARY KEY,
	marker_key  TEXT NOT NULL UNIQUE,
	collector   TEXT NOT NULL,
	generator   TEXT NOT NULL,
	created_at  TEXT NOT NULL
)`
	if err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	}); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Location identifies the marker row.
func (s *SQLiteStore) Location(key string) string {
	return "sqlite://" + s.path + "#" + key
}

// Has reports whether a marker row exists.
func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT 1 FROM processed_markers WHERE marker_key = ?`, key).Scan(&one)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Claim marks the key as in flight for this process.
func (s *SQLiteStore) Claim(key string) (func(), error) {
	if !s.claims.acquire(key) {
		return nil, ErrClaimed
	}
	return func() { s.claims.drop(key) }, nil
}

// Write inserts the marker; an existing row is left untouched.
func (s *SQLiteStore) Write(ctx context.Context, m Marker) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO processed_markers (fingerprint, marker_key, collector, generator, created_at) VALUES (?, ?, ?, ?, ?)`,
			m.Fingerprint, m.Key, m.Collector, m.Generator, m.CreatedAt.UTC().Format(time.RFC3339Nano))
		return err
	})
}

// Delete removes the marker row.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM processed_markers WHERE marker_key = ?`, key)
		return execErr
	})
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, key)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

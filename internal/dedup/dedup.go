// Package dedup keeps a batch from being processed twice by remembering the
// content fingerprint of every batch whose raw data was persisted.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/fingerprint"
)

var (
	// ErrClaimed is returned by MarkerStore.Claim when another cycle holds the key.
	ErrClaimed = errors.New("dedup: fingerprint already claimed")
	// ErrMarkerNotFound is returned when purging a marker that does not exist.
	ErrMarkerNotFound = errors.New("dedup: marker not found")
	// ErrNotReserved is returned when committing a reservation that is not new.
	ErrNotReserved = errors.New("dedup: reservation does not hold a claim")
)

// Marker records that a batch has been processed.
type Marker struct {
	Key         string    `json:"key"`
	Fingerprint string    `json:"fingerprint"`
	Collector   string    `json:"collector"`
	Generator   string    `json:"generator"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MarkerStore persists markers and arbitrates claims on keys.
type MarkerStore interface {
	Has(ctx context.Context, key string) (bool, error)
	Claim(key string) (release func(), err error)
	Write(ctx context.Context, m Marker) error
	Delete(ctx context.Context, key string) error
	Location(key string) string
	Close() error
}

// Open returns the marker store selected by the configuration.
func Open(cfg *appconfig.Config) (MarkerStore, error) {
	switch cfg.MarkerBackend() {
	case appconfig.MarkerStoreSQLite:
		return OpenSQLite(cfg.MarkerDBPath())
	default:
		return NewFileStore(cfg.MarkersDir())
	}
}

// Key builds the human-readable marker key for a fingerprint.
func Key(fp, collectorID, generatorID string) string {
	return fp + "." + collectorID + "." + generatorID
}

// BatchFingerprint digests a batch together with the collector and generator
// that produced it, so the same data under a different pipeline is new.
func BatchFingerprint(collectorID, generatorID string, batch any) (string, error) {
	canonical, err := fingerprint.Canonicalize(batch)
	if err != nil {
		return "", fmt.Errorf("canonicalize batch: %w", err)
	}
	data := make([]byte, 0, len(collectorID)+len(generatorID)+2+len(canonical))
	data = append(data, collectorID...)
	data = append(data, '-')
	data = append(data, generatorID...)
	data = append(data, '-')
	data = append(data, canonical...)
	return fingerprint.DigestBytes(data), nil
}

// Gate answers "has this batch been processed" and reserves new batches.
type Gate struct {
	store MarkerStore
	now   func() time.Time
}

// NewGate wraps a marker store.
func NewGate(store MarkerStore) *Gate {
	return &Gate{store: store, now: time.Now}
}

// Store returns the underlying marker store.
func (g *Gate) Store() MarkerStore {
	return g.store
}

// CheckAndReserve fingerprints the batch and, when no marker exists and no
// other cycle holds it, returns a reservation with IsNew set. The caller must
// Commit only after the batch is durably persisted and must always Release.
func (g *Gate) CheckAndReserve(ctx context.Context, collectorID, generatorID string, batch any) (*Reservation, error) {
	fp, err := BatchFingerprint(collectorID, generatorID, batch)
	if err != nil {
		return nil, err
	}
	key := Key(fp, collectorID, generatorID)
	res := &Reservation{
		Fingerprint: fp,
		Key:         key,
		Marker:      g.store.Location(key),
		gate:        g,
		collector:   collectorID,
		generator:   generatorID,
	}

	exists, err := g.store.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check marker %s: %w", key, err)
	}
	if exists {
		return res, nil
	}

	release, err := g.store.Claim(key)
	if errors.Is(err, ErrClaimed) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", key, err)
	}

	// A concurrent holder may have committed between Has and Claim.
	exists, err = g.store.Has(ctx, key)
	if err != nil {
		release()
		return nil, fmt.Errorf("check marker %s: %w", key, err)
	}
	if exists {
		release()
		return res, nil
	}

	res.IsNew = true
	res.release = release
	return res, nil
}

// Reservation is the outcome of CheckAndReserve.
type Reservation struct {
	IsNew       bool
	Fingerprint string
	Key         string
	// Marker is where the marker lives (or will live) in the store.
	Marker string

	gate      *Gate
	collector string
	generator string
	release   func()
	once      sync.Once
	committed bool
}

// Commit writes the marker for a new reservation.
func (r *Reservation) Commit(ctx context.Context) error {
	if !r.IsNew || r.release == nil {
		return ErrNotReserved
	}
	if r.committed {
		return nil
	}
	err := r.gate.store.Write(ctx, Marker{
		Key:         r.Key,
		Fingerprint: r.Fingerprint,
		Collector:   r.collector,
		Generator:   r.generator,
		CreatedAt:   r.gate.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("write marker %s: %w", r.Key, err)
	}
	r.committed = true
	return nil
}

// Committed reports whether Commit succeeded.
func (r *Reservation) Committed() bool {
	return r.committed
}

// Release drops the claim. It is safe to call more than once and on
// reservations that were never new.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}

// Purge removes a marker so the batch it names is processed again.
func Purge(ctx context.Context, store MarkerStore, key string) error {
	key = strings.TrimSpace(key)
	key = strings.TrimSuffix(key, processedSuffix)
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid marker key %q", key)
	}
	return store.Delete(ctx, key)
}

// claimSet tracks keys claimed inside this process.
type claimSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newClaimSet() *claimSet {
	return &claimSet{keys: make(map[string]struct{})}
}

func (c *claimSet) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.keys[key]; held {
		return false
	}
	c.keys[key] = struct{}{}
	return true
}

func (c *claimSet) drop(key string) {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
}

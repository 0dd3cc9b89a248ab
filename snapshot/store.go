package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable home of a cache's snapshots, lock marker and refresh
// logs. Entry names are flat identifiers (file base names, Redis fields);
// the naming helpers in this package give them structure.
//
// AcquireLock must be an atomic create-if-absent: it returns false, not an
// error, when another claim already exists. All coordination above the store
// relies on that primitive (see the refresh package).
type Store interface {
	// Entries lists all entry names currently stored, in no particular order.
	Entries(ctx context.Context) ([]string, error)
	// Write durably persists data under name, replacing any previous entry.
	Write(ctx context.Context, name string, data []byte) error
	// Read returns the data stored under name.
	Read(ctx context.Context, name string) ([]byte, error)
	// AcquireLock atomically creates the lock marker for cache. It returns
	// false when a marker already exists (another refresh is in flight).
	AcquireLock(ctx context.Context, cache string, info LockInfo) (bool, error)
	// ReadLock reports whether a lock marker exists for cache and, if so,
	// its recorded claim info.
	ReadLock(ctx context.Context, cache string) (bool, LockInfo, error)
	// ReleaseLock removes the lock marker for cache. Removing an absent
	// marker is not an error.
	ReleaseLock(ctx context.Context, cache string) error
	// Close releases any resources owned by the store.
	Close() error
}

// LockInfo is the content of a refresh lock marker.
type LockInfo struct {
	// Token identifies the claim so a worker never releases a lock it does
	// not own.
	Token string `msgpack:"token"`
	// ClaimedAt is when the refresh claimed the lock.
	ClaimedAt time.Time `msgpack:"claimed_at"`
}

// NewLockInfo returns a LockInfo with a fresh claim token.
func NewLockInfo(now time.Time) LockInfo {
	return LockInfo{Token: uuid.NewString(), ClaimedAt: now.UTC()}
}

// Age returns how long the lock has been held as of now.
func (l LockInfo) Age(now time.Time) time.Duration {
	return now.Sub(l.ClaimedAt)
}

// DefaultQueryTimeout bounds individual operations on I/O-backed stores so a
// slow disk or unresponsive Redis cannot hang a fetch indefinitely.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	queryTimeout time.Duration
	prefix       string
}

// Option configures a Store implementation.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithPrefix sets the key prefix used by the Redis store for namespacing
// multiple caches on one Redis instance. Defaults to empty.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

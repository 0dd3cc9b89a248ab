package fetch

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/snapfetch/snapfetch/inventory"
	"github.com/snapfetch/snapfetch/logger"
	"github.com/snapfetch/snapfetch/policy"
	"github.com/snapfetch/snapfetch/refresh"
	"github.com/snapfetch/snapfetch/snapshot"
)

// ErrConfig marks configuration errors: a missing loader or an invalid
// policy. These are surfaced immediately, before any side effect.
var ErrConfig = errors.New("fetch: invalid configuration")

// Defaults applied by Config.withDefaults.
const (
	DefaultDir  = "cache"
	DefaultName = "Cache"
)

// Config describes one memoized fetch.
type Config struct {
	// Loader produces the data when a refresh is needed. Required.
	Loader refresh.Loader
	// Policy decides when the current snapshot is stale. Defaults to
	// policy.Daily.
	Policy policy.Policy
	// Dir is the cache directory used when no Store is given. Defaults to
	// DefaultDir.
	Dir string
	// Name scopes snapshots, lock and logs to this cache. Defaults to
	// DefaultName.
	Name string
	// Wait forces the refresh of a stale snapshot to run synchronously, so
	// the call returns the new data instead of serving the stale snapshot.
	Wait bool
	// Args are forwarded to the loader on every refresh.
	Args []any
	// Store overrides the snapshot store. When nil, a filesystem store
	// rooted at Dir is created (and its directory ensured).
	Store snapshot.Store
	// Executor runs background refreshes. Defaults to detached goroutines;
	// use NoBackground to force every refresh to be synchronous.
	Executor refresh.Executor
	// Logger defaults to the console logger.
	Logger logger.Logger
}

// noBackground disables background refresh while being distinguishable from
// an unset Executor field.
type noBackground struct{}

func (noBackground) Spawn(func()) {}

// NoBackground returns an Executor sentinel that disables background
// refresh: stale snapshots are always refreshed synchronously, as on
// platforms without detached execution support.
func NoBackground() refresh.Executor { return noBackground{} }

// Source reports where the data bound by Fetch came from.
type Source int

const (
	// SourceInitial means no snapshot existed and a mandatory first load ran.
	SourceInitial Source = iota
	// SourceCached means the current snapshot was fresh and served as is.
	SourceCached
	// SourceRefreshed means the snapshot was stale and a synchronous refresh
	// produced the data.
	SourceRefreshed
	// SourceStale means a stale snapshot was served: either a background
	// refresh was started or deferred, or a synchronous refresh failed and
	// the call degraded to the previous snapshot.
	SourceStale
)

func (s Source) String() string {
	switch s {
	case SourceInitial:
		return "initial"
	case SourceCached:
		return "cached"
	case SourceRefreshed:
		return "refreshed"
	default:
		return "stale"
	}
}

// Result reports what Fetch bound and where it came from.
type Result struct {
	// CreatedAt is the creation time of the snapshot whose data was bound.
	CreatedAt time.Time
	// Name is that snapshot's entry name in the store.
	Name string
	// Source classifies the branch taken.
	Source Source
	// Refresh is the outcome of the refresh attempt, when one was made.
	Refresh *refresh.Result
}

func (cfg Config) withDefaults() Config {
	if cfg.Policy == nil {
		cfg.Policy = policy.Daily
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewConsole()
	}
	return cfg
}

// Fetch returns the most current data obtainable for the configured cache,
// binding the snapshot payload into target (a pointer; nil skips binding).
//
// The first ever call performs a mandatory load. Afterwards, a fresh snapshot
// is served directly; a stale one triggers a refresh — synchronous when
// cfg.Wait is set or background execution is unavailable, otherwise
// fire-and-forget in the background while this call still serves (and
// returns the timestamp of) the existing snapshot. A failed synchronous
// refresh degrades to the previous snapshot when one exists; only a failed
// first load is fatal to the call, and then nothing is bound.
func Fetch(ctx context.Context, cfg Config, target any) (Result, error) {
	cfg = cfg.withDefaults()
	if cfg.Loader == nil {
		return Result{}, errors.Wrap(ErrConfig, "loader is required")
	}

	log := cfg.Logger.With(map[string]any{"cache": cfg.Name})

	store := cfg.Store
	if store == nil {
		var err error
		if store, err = snapshot.NewFS(cfg.Dir); err != nil {
			return Result{}, err
		}
		defer store.Close()
	}

	var opts []refresh.Option
	if cfg.Executor != nil {
		if _, off := cfg.Executor.(noBackground); off {
			opts = append(opts, refresh.WithExecutor(nil))
		} else {
			opts = append(opts, refresh.WithExecutor(cfg.Executor))
		}
	}
	coord := refresh.New(store, cfg.Logger, opts...)

	listing, err := inventory.List(ctx, store, cfg.Name)
	if err != nil {
		return Result{}, err
	}
	for _, defect := range listing.ParseDefects {
		log.Warn("ignoring malformed snapshot entry: %v", defect)
	}

	req := refresh.Request{Cache: cfg.Name, Loader: cfg.Loader, Args: cfg.Args, Wait: true}

	current, exists := listing.Current()
	if !exists {
		log.Info("no cached data, loading initial")
		res, err := coord.Run(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if res.Outcome != refresh.Refreshed {
			// First-run failure: nothing to fall back on, nothing is bound.
			if res.Err != nil {
				return Result{}, res.Err
			}
			return Result{}, errors.Newf("fetch: initial load did not complete (%s)", res.Outcome)
		}
		if err := bind(ctx, store, res.Name, target); err != nil {
			return Result{}, err
		}
		return Result{CreatedAt: res.CreatedAt, Name: res.Name, Source: SourceInitial, Refresh: &res}, nil
	}

	if !cfg.Policy(current.CreatedAt, time.Now()) {
		log.Debug("snapshot %s is fresh (age %s)", current.Name, current.Age.Round(time.Second))
		if err := bind(ctx, store, current.Name, target); err != nil {
			return Result{}, err
		}
		return Result{CreatedAt: current.CreatedAt, Name: current.Name, Source: SourceCached}, nil
	}

	if cfg.Wait || !coord.Background() {
		log.Info("loading new data")
		res, err := coord.Run(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if res.Outcome == refresh.Refreshed {
			if err := bind(ctx, store, res.Name, target); err != nil {
				return Result{}, err
			}
			return Result{CreatedAt: res.CreatedAt, Name: res.Name, Source: SourceRefreshed, Refresh: &res}, nil
		}
		// Refresh failed (or lost a cross-process race): degrade to the
		// snapshot we already have.
		log.Warn("refresh did not complete (%s), serving snapshot from %s: %v",
			res.Outcome, current.CreatedAt.Format(time.RFC3339), res.Err)
		if err := bind(ctx, store, current.Name, target); err != nil {
			return Result{}, err
		}
		return Result{CreatedAt: current.CreatedAt, Name: current.Name, Source: SourceStale, Refresh: &res}, nil
	}

	// Background-capable and not asked to wait: kick off the refresh and
	// serve the stale snapshot regardless of how the claim went. The new
	// data is only observable on a later call.
	req.Wait = false
	res, err := coord.Run(ctx, req)
	if err != nil {
		return Result{}, err
	}
	switch res.Outcome {
	case refresh.Started:
		log.Info("loading new data in background, serving snapshot from %s",
			current.CreatedAt.Format(time.RFC3339))
	case refresh.Deferred:
		log.Info("refresh already in flight, serving snapshot from %s",
			current.CreatedAt.Format(time.RFC3339))
	}
	if err := bind(ctx, store, current.Name, target); err != nil {
		return Result{}, err
	}
	return Result{CreatedAt: current.CreatedAt, Name: current.Name, Source: SourceStale, Refresh: &res}, nil
}

// As is a typed convenience wrapper around Fetch.
func As[T any](ctx context.Context, cfg Config) (T, Result, error) {
	var value T
	res, err := Fetch(ctx, cfg, &value)
	return value, res, err
}

func bind(ctx context.Context, store snapshot.Store, name string, target any) error {
	if target == nil {
		return nil
	}
	data, err := store.Read(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "fetch: read snapshot %s", name)
	}
	return snapshot.Decode(data, target)
}

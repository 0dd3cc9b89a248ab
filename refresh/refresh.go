// Package refresh coordinates reloading a cache's data so that concurrent
// callers and processes never run duplicate refreshes.
//
// Cross-process coordination uses the store's lock marker: claiming is a
// single atomic create-if-absent, and losing the race is the expected
// Deferred outcome, not an error. Within one process, concurrent blocking
// refreshes of the same cache are additionally collapsed into a single loader
// call via singleflight.
//
// A refresh can run in the caller's control flow (blocking) or fire-and-forget
// in a detached worker (background). Background workers have no return
// channel: their outcome is observable only through logs and, on a later
// call, the changed snapshot inventory.
package refresh

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"

	"github.com/snapfetch/snapfetch/logger"
	"github.com/snapfetch/snapfetch/snapshot"
)

// Loader produces the data for one refresh. It is supplied by the caller and
// invoked with the caller-forwarded arguments.
type Loader func(ctx context.Context, args ...any) (any, error)

// Executor spawns a detached background task. There is deliberately no way to
// await or cancel a spawned task; callers that need the result must observe
// it through the store on a later call.
type Executor interface {
	Spawn(fn func())
}

type goExecutor struct{}

func (goExecutor) Spawn(fn func()) { go fn() }

// NewGoExecutor returns an Executor that runs tasks on detached goroutines.
func NewGoExecutor() Executor { return goExecutor{} }

// ErrLoadFailed marks loader failures so callers can distinguish them from
// storage and coordination errors.
var ErrLoadFailed = errors.New("refresh: load failed")

// Outcome classifies how a refresh attempt ended.
type Outcome int

const (
	// Refreshed means the loader ran and a new snapshot was written.
	Refreshed Outcome = iota
	// Started means a background refresh was claimed and spawned; its result
	// is not observable on this call.
	Started
	// Deferred means another refresh holds the lock; nothing was done.
	Deferred
	// Failed means the loader or persistence failed; no snapshot was written
	// and the lock was released.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Refreshed:
		return "refreshed"
	case Started:
		return "started"
	case Deferred:
		return "deferred"
	default:
		return "failed"
	}
}

// Result reports the terminal state of one refresh attempt.
type Result struct {
	Outcome Outcome
	// CreatedAt and Name identify the new snapshot when Outcome is Refreshed.
	CreatedAt time.Time
	Name      string
	// LockAge is how long the competing lock had been held when Outcome is
	// Deferred.
	LockAge time.Duration
	// Err is the loader or persistence failure when Outcome is Failed.
	Err error
}

// Request describes one refresh to run.
type Request struct {
	// Cache names the cache whose snapshot is refreshed.
	Cache string
	// Loader produces the new data.
	Loader Loader
	// Args are forwarded to the loader.
	Args []any
	// Wait forces the refresh to run synchronously in the caller's control
	// flow even when an executor is available.
	Wait bool
}

// Coordinator runs the refresh protocol against one store.
type Coordinator struct {
	store    snapshot.Store
	log      logger.Logger
	executor Executor
	group    singleflight.Group
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithExecutor sets the background executor. Passing nil disables background
// refresh entirely; Run then always executes synchronously.
func WithExecutor(e Executor) Option {
	return func(c *Coordinator) { c.executor = e }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New returns a Coordinator using store for snapshots and locking. The
// default executor runs background refreshes on detached goroutines.
func New(store snapshot.Store, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		log:      log,
		executor: NewGoExecutor(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewConsole()
	}
	return c
}

// Background reports whether this coordinator can run refreshes in the
// background.
func (c *Coordinator) Background() bool {
	return c.executor != nil
}

// Run executes the refresh protocol for req.
//
// In blocking mode (req.Wait, or no executor) the whole refresh runs in the
// caller's control flow and the result carries the new snapshot's timestamp.
// An existing lock is taken over rather than deferred to: with no background
// workers there is a single thread of control by construction, so a leftover
// marker can only be an orphan from a crashed refresh.
//
// In background mode the lock is checked and claimed synchronously; when
// another refresh is in flight the result is Deferred with the observed lock
// age. On a successful claim the loader, persistence and lock release run in
// a detached worker and the result is Started.
//
// The returned error covers storage and coordination failures only; loader
// failures are reported as Outcome Failed with Result.Err set, wrapping
// [ErrLoadFailed].
func (c *Coordinator) Run(ctx context.Context, req Request) (Result, error) {
	if req.Loader == nil {
		return Result{}, errors.New("refresh: loader is required")
	}
	if req.Cache == "" {
		return Result{}, errors.New("refresh: cache name is required")
	}

	if req.Wait || c.executor == nil {
		v, err, _ := c.group.Do(req.Cache, func() (any, error) {
			return c.runBlocking(ctx, req)
		})
		if err != nil {
			return Result{}, err
		}
		return v.(Result), nil
	}
	return c.runBackground(ctx, req)
}

func (c *Coordinator) runBlocking(ctx context.Context, req Request) (Result, error) {
	now := c.now()
	held, info, err := c.store.ReadLock(ctx, req.Cache)
	if err != nil {
		return Result{}, errors.Wrap(err, "refresh: read lock")
	}
	if held {
		c.log.Warn("taking over refresh lock for %s (age %s, presumed orphaned)",
			req.Cache, info.Age(now).Round(time.Second))
		if err := c.store.ReleaseLock(ctx, req.Cache); err != nil {
			return Result{}, errors.Wrap(err, "refresh: release orphaned lock")
		}
	}
	claim := snapshot.NewLockInfo(now)
	ok, err := c.store.AcquireLock(ctx, req.Cache, claim)
	if err != nil {
		return Result{}, errors.Wrap(err, "refresh: claim lock")
	}
	if !ok {
		// Lost a cross-process race between release and claim.
		return Result{Outcome: Deferred}, nil
	}
	return c.execute(ctx, req, claim), nil
}

func (c *Coordinator) runBackground(ctx context.Context, req Request) (Result, error) {
	now := c.now()
	held, info, err := c.store.ReadLock(ctx, req.Cache)
	if err != nil {
		return Result{}, errors.Wrap(err, "refresh: read lock")
	}
	if held {
		age := info.Age(now).Round(time.Second)
		c.log.Info("refresh of %s already in flight (lock age %s), deferring", req.Cache, age)
		return Result{Outcome: Deferred, LockAge: info.Age(now)}, nil
	}
	claim := snapshot.NewLockInfo(now)
	ok, err := c.store.AcquireLock(ctx, req.Cache, claim)
	if err != nil {
		return Result{}, errors.Wrap(err, "refresh: claim lock")
	}
	if !ok {
		c.log.Info("refresh of %s lost the lock race, deferring", req.Cache)
		return Result{Outcome: Deferred}, nil
	}

	// The worker is memory-isolated from the caller's control flow: it gets
	// a fresh context and reports only through the store and logs.
	c.executor.Spawn(func() {
		result := c.execute(context.Background(), req, claim)
		if result.Outcome == Failed {
			c.log.Warn("background refresh of %s failed: %v", req.Cache, result.Err)
		}
	})
	return Result{Outcome: Started}, nil
}

// execute runs the claimed portion of the state machine: load, persist,
// release. The lock is released whatever the outcome, and the attempt's log
// lines are captured into a per-refresh log entry in the store.
func (c *Coordinator) execute(ctx context.Context, req Request, claim snapshot.LockInfo) Result {
	var capture bytes.Buffer
	log := c.log.With(map[string]any{"cache": req.Cache, "claim": claim.Token})
	if sl, ok := log.(logger.SinkLogger); ok {
		log = sl.WithSink(&capture, logger.LevelTrace)
	}

	result := func() Result {
		defer func() {
			if err := c.store.ReleaseLock(ctx, req.Cache); err != nil {
				log.Error("failed to release refresh lock for %s: %v", req.Cache, err)
			}
		}()

		log.Debug("refresh of %s claimed at %s", req.Cache, claim.ClaimedAt.Format(time.RFC3339))
		value, err := req.Loader(ctx, req.Args...)
		if err != nil {
			log.Error("loader for %s failed: %v", req.Cache, err)
			return Result{Outcome: Failed, Err: errors.Mark(errors.Wrap(err, "refresh"), ErrLoadFailed)}
		}

		data, err := snapshot.Encode(value)
		if err != nil {
			log.Error("encoding snapshot for %s failed: %v", req.Cache, err)
			return Result{Outcome: Failed, Err: errors.Mark(err, ErrLoadFailed)}
		}
		createdAt := c.now().UTC().Truncate(time.Second)
		name := snapshot.Name(req.Cache, createdAt)
		if err := c.store.Write(ctx, name, data); err != nil {
			log.Error("writing snapshot %s failed: %v", name, err)
			return Result{Outcome: Failed, Err: errors.Mark(errors.Wrap(err, "refresh: persist snapshot"), ErrLoadFailed)}
		}
		log.Info("snapshot %s written (%d bytes)", name, len(data))
		return Result{Outcome: Refreshed, CreatedAt: createdAt, Name: name}
	}()

	logAt := result.CreatedAt
	if result.Outcome != Refreshed {
		logAt = claim.ClaimedAt
	}
	if capture.Len() > 0 {
		if err := c.store.Write(ctx, snapshot.LogName(req.Cache, logAt), capture.Bytes()); err != nil {
			c.log.Warn("failed to write refresh log for %s: %v", req.Cache, err)
		}
	}
	return result
}

// Package fetch is the entry point of snapfetch: a disk-backed memoization
// cache for expensive, time-varying fetches such as periodic downloads.
//
// A caller supplies a loader and a staleness policy; [Fetch] returns the most
// recent successfully loaded snapshot immediately and triggers a refresh when
// that snapshot is judged stale — in the background by default, so stale data
// keeps being served while the reload runs.
//
// # Basic use
//
//	prices, res, err := fetch.As[map[string]float64](ctx, fetch.Config{
//	    Name:   "prices",
//	    Dir:    "/var/cache/myapp",
//	    Policy: policy.Hourly,
//	    Loader: func(ctx context.Context, args ...any) (any, error) {
//	        return downloadPrices(ctx)
//	    },
//	})
//
// The first call performs a mandatory load ("no cached data, loading
// initial") and persists the result as a timestamped snapshot. Later calls
// serve the newest snapshot directly while it is fresh. Once the policy
// judges it stale, a refresh is claimed through the store's lock marker and
// either runs synchronously (Config.Wait, or no background executor) or in a
// detached background worker while the stale snapshot is still served.
//
// # Branch semantics
//
// Exactly one snapshot payload is bound into the target per call, with one
// exception: when the very first load fails there is nothing to fall back on,
// the error is returned and nothing is bound. A failed synchronous refresh
// with a prior snapshot available degrades gracefully — the caller gets the
// old data, a warning is logged, and the returned [Result] carries the
// failure. A background refresh never changes what the triggering call
// returns; its outcome is observable on a later call once the worker has
// released the lock.
//
// Two concurrent callers may both see a stale snapshot; the store's atomic
// create-if-absent lock guarantees only one runs the loader. The loser's
// attempt is Deferred, which is an expected outcome, not an error.
//
// # Stores
//
// Snapshots live in a [snapshot.Store]. The default is a directory on the
// local filesystem ([snapshot.NewFS] of Config.Dir); [snapshot.NewRedis]
// shares a cache across hosts and [snapshot.NewInMemory] serves tests.
// Payloads are msgpack-encoded with a checksummed container, so anything
// msgpack can serialize — structs with exported fields, maps, slices — can be
// cached and later bound into a matching Go value.
package fetch

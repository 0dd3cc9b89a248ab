package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapfetch/snapfetch/logger"
	"github.com/snapfetch/snapfetch/policy"
	"github.com/snapfetch/snapfetch/refresh"
	"github.com/snapfetch/snapfetch/snapshot"
)

type trackedExecutor struct {
	wg sync.WaitGroup
}

func (e *trackedExecutor) Spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

func countingLoader(loads *int32, value any) refresh.Loader {
	return func(context.Context, ...any) (any, error) {
		atomic.AddInt32(loads, 1)
		return value, nil
	}
}

func seedSnapshot(t *testing.T, store snapshot.Store, cache string, createdAt time.Time, value any) string {
	t.Helper()
	data, err := snapshot.Encode(value)
	require.NoError(t, err)
	name := snapshot.Name(cache, createdAt)
	require.NoError(t, store.Write(context.Background(), name, data))
	return name
}

func TestFetchRequiresLoader(t *testing.T) {
	_, err := Fetch(context.Background(), Config{Store: snapshot.NewInMemory()}, nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFetchInitialLoad(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	var loads int32

	before := time.Now().UTC().Truncate(time.Second)
	var bound map[string]any
	res, err := Fetch(ctx, Config{
		Loader: countingLoader(&loads, map[string]any{"x": 1}),
		Policy: policy.Daily,
		Store:  store,
		Logger: logger.NewTestLogger(),
	}, &bound)
	after := time.Now().UTC()

	require.NoError(t, err)
	assert.Equal(t, SourceInitial, res.Source)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.EqualValues(t, 1, bound["x"])
	// Timestamp falls inside the call's wall-clock window.
	assert.False(t, res.CreatedAt.Before(before))
	assert.False(t, res.CreatedAt.After(after))

	// Exactly one snapshot exists.
	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	var snaps int
	for _, name := range entries {
		if _, ours, perr := snapshot.ParseName(DefaultName, name); ours && perr == nil {
			snaps++
		}
	}
	assert.Equal(t, 1, snaps)
}

func TestFetchIdempotent(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	var loads int32
	cfg := Config{
		Loader: countingLoader(&loads, "value"),
		Policy: policy.EveryNHours(1),
		Store:  store,
		Logger: logger.NewTestLogger(),
	}

	first, err := Fetch(ctx, cfg, nil)
	require.NoError(t, err)
	second, err := Fetch(ctx, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads), "second call must not load")
	assert.Equal(t, SourceCached, second.Source)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestFetchServesFreshSnapshot(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	createdAt := time.Now().UTC().Truncate(time.Second).Add(-10 * time.Minute)
	seedSnapshot(t, store, DefaultName, createdAt, "cached-value")

	var loads int32
	var bound string
	res, err := Fetch(ctx, Config{
		Loader: countingLoader(&loads, "new-value"),
		Policy: policy.EveryNHours(1),
		Store:  store,
		Logger: logger.NewTestLogger(),
	}, &bound)
	require.NoError(t, err)
	assert.Equal(t, SourceCached, res.Source)
	assert.Equal(t, "cached-value", bound)
	assert.Equal(t, createdAt, res.CreatedAt)
	assert.Zero(t, atomic.LoadInt32(&loads))
}

func TestFetchBlockingRefresh(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	old := time.Now().UTC().Truncate(time.Second).Add(-25 * time.Hour)
	seedSnapshot(t, store, DefaultName, old, "old-value")

	var bound string
	res, err := Fetch(ctx, Config{
		Loader: func(context.Context, ...any) (any, error) { return "new-value", nil },
		Policy: policy.EveryNHours(24),
		Store:  store,
		Wait:   true,
		Logger: logger.NewTestLogger(),
	}, &bound)
	require.NoError(t, err)
	assert.Equal(t, SourceRefreshed, res.Source)
	assert.Equal(t, "new-value", bound)
	assert.True(t, res.CreatedAt.After(old))
}

func TestFetchBackgroundServesStale(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	old := time.Now().UTC().Truncate(time.Second).Add(-25 * time.Hour)
	oldName := seedSnapshot(t, store, DefaultName, old, "old-value")

	exec := &trackedExecutor{}
	release := make(chan struct{})
	var bound string
	res, err := Fetch(ctx, Config{
		Loader: func(context.Context, ...any) (any, error) {
			<-release
			return "new-value", nil
		},
		Policy:   policy.Daily,
		Store:    store,
		Executor: exec,
		Logger:   logger.NewTestLogger(),
	}, &bound)

	// The call returned the old snapshot without waiting for the worker.
	require.NoError(t, err)
	assert.Equal(t, SourceStale, res.Source)
	assert.Equal(t, oldName, res.Name)
	assert.Equal(t, old, res.CreatedAt)
	assert.Equal(t, "old-value", bound)
	require.NotNil(t, res.Refresh)
	assert.Equal(t, refresh.Started, res.Refresh.Outcome)

	close(release)
	exec.wg.Wait()

	// The new snapshot eventually appears without further calls.
	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	var snaps int
	for _, name := range entries {
		if _, ours, perr := snapshot.ParseName(DefaultName, name); ours && perr == nil {
			snaps++
		}
	}
	assert.Equal(t, 2, snaps)
}

func TestFetchBackgroundDeferred(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	old := time.Now().UTC().Truncate(time.Second).Add(-25 * time.Hour)
	seedSnapshot(t, store, DefaultName, old, "old-value")

	// Another process holds the refresh lock.
	ok, err := store.AcquireLock(ctx, DefaultName, snapshot.NewLockInfo(time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	require.True(t, ok)

	var loads int32
	var bound string
	res, err := Fetch(ctx, Config{
		Loader: countingLoader(&loads, "new-value"),
		Policy: policy.Daily,
		Store:  store,
		Logger: logger.NewTestLogger(),
	}, &bound)
	require.NoError(t, err)
	assert.Equal(t, SourceStale, res.Source)
	assert.Equal(t, "old-value", bound)
	assert.Equal(t, old, res.CreatedAt)
	require.NotNil(t, res.Refresh)
	assert.Equal(t, refresh.Deferred, res.Refresh.Outcome)
	assert.Zero(t, atomic.LoadInt32(&loads))
}

func TestFetchFirstLoadFailureBindsNothing(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	boom := errors.New("upstream down")

	bound := "untouched"
	_, err := Fetch(ctx, Config{
		Loader: func(context.Context, ...any) (any, error) { return nil, boom },
		Store:  store,
		Logger: logger.NewTestLogger(),
	}, &bound)
	require.Error(t, err)
	assert.ErrorIs(t, err, refresh.ErrLoadFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "untouched", bound)

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	for _, name := range entries {
		_, ours, perr := snapshot.ParseName(DefaultName, name)
		assert.False(t, ours && perr == nil, "no snapshot should exist after a failed first load")
	}
}

func TestFetchDegradesOnRefreshFailure(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	old := time.Now().UTC().Truncate(time.Second).Add(-25 * time.Hour)
	seedSnapshot(t, store, DefaultName, old, "old-value")

	log := logger.NewTestLogger()
	var bound string
	res, err := Fetch(ctx, Config{
		Loader: func(context.Context, ...any) (any, error) { return nil, errors.New("upstream down") },
		Policy: policy.Daily,
		Store:  store,
		Wait:   true,
		Logger: log,
	}, &bound)

	// Degraded, not fatal: the prior snapshot is served and the caller is
	// merely informed the refresh failed.
	require.NoError(t, err)
	assert.Equal(t, SourceStale, res.Source)
	assert.Equal(t, "old-value", bound)
	assert.Equal(t, old, res.CreatedAt)
	require.NotNil(t, res.Refresh)
	assert.Equal(t, refresh.Failed, res.Refresh.Outcome)
	assert.ErrorIs(t, res.Refresh.Err, refresh.ErrLoadFailed)

	var warned bool
	for _, e := range log.Logs() {
		if e.Severity == "WARN" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestFetchNoBackgroundForcesSync(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	old := time.Now().UTC().Truncate(time.Second).Add(-25 * time.Hour)
	seedSnapshot(t, store, DefaultName, old, "old-value")

	var bound string
	res, err := Fetch(ctx, Config{
		Loader:   func(context.Context, ...any) (any, error) { return "new-value", nil },
		Policy:   policy.Daily,
		Store:    store,
		Executor: NoBackground(),
		Logger:   logger.NewTestLogger(),
	}, &bound)
	require.NoError(t, err)
	assert.Equal(t, SourceRefreshed, res.Source)
	assert.Equal(t, "new-value", bound)
}

func TestFetchTypedHelper(t *testing.T) {
	type report struct {
		Rows  int    `msgpack:"rows"`
		Title string `msgpack:"title"`
	}
	store := snapshot.NewInMemory()
	value, res, err := As[report](context.Background(), Config{
		Loader: func(context.Context, ...any) (any, error) {
			return report{Rows: 3, Title: "daily"}, nil
		},
		Store:  store,
		Logger: logger.NewTestLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, SourceInitial, res.Source)
	assert.Equal(t, report{Rows: 3, Title: "daily"}, value)
}

func TestFetchDefaultsToFilesystemStore(t *testing.T) {
	dir := t.TempDir()
	var bound string
	res, err := Fetch(context.Background(), Config{
		Loader: func(context.Context, ...any) (any, error) { return "on-disk", nil },
		Dir:    dir,
		Name:   "Weather",
		Logger: logger.NewTestLogger(),
	}, &bound)
	require.NoError(t, err)
	assert.Equal(t, "on-disk", bound)
	assert.Equal(t, snapshot.Name("Weather", res.CreatedAt), res.Name)

	// A second call is served from disk without reloading.
	var loads int32
	res2, err := Fetch(context.Background(), Config{
		Loader: countingLoader(&loads, "reload"),
		Dir:    dir,
		Name:   "Weather",
		Logger: logger.NewTestLogger(),
	}, &bound)
	require.NoError(t, err)
	assert.Equal(t, "on-disk", bound)
	assert.Equal(t, res.CreatedAt, res2.CreatedAt)
	assert.Zero(t, atomic.LoadInt32(&loads))
}

func TestFetchArgsForwarded(t *testing.T) {
	var got []any
	_, err := Fetch(context.Background(), Config{
		Loader: func(_ context.Context, args ...any) (any, error) {
			got = args
			return "ok", nil
		},
		Args:   []any{"https://example.com", 7},
		Store:  snapshot.NewInMemory(),
		Logger: logger.NewTestLogger(),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"https://example.com", 7}, got)
}

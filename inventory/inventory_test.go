package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapfetch/snapfetch/policy"
	"github.com/snapfetch/snapfetch/snapshot"
)

func seed(t *testing.T, store snapshot.Store, cache string, times ...time.Time) {
	t.Helper()
	for _, ts := range times {
		require.NoError(t, store.Write(context.Background(), snapshot.Name(cache, ts), []byte("payload")))
	}
}

func TestListEmpty(t *testing.T) {
	listing, err := List(context.Background(), snapshot.NewInMemory(), "Cache")
	require.NoError(t, err)
	assert.Empty(t, listing.Records)
	assert.Empty(t, listing.ParseDefects)
	_, ok := listing.Current()
	assert.False(t, ok)
}

func TestListRanksNewestFirst(t *testing.T) {
	store := snapshot.NewInMemory()
	t1 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(4 * time.Hour)
	t3 := t1.Add(26 * time.Hour)
	seed(t, store, "Cache", t2, t3, t1)

	listing, err := List(context.Background(), store, "Cache")
	require.NoError(t, err)
	require.Len(t, listing.Records, 3)
	assert.Equal(t, t3, listing.Records[0].CreatedAt)
	assert.Equal(t, t2, listing.Records[1].CreatedAt)
	assert.Equal(t, t1, listing.Records[2].CreatedAt)

	current, ok := listing.Current()
	assert.True(t, ok)
	assert.Equal(t, t3, current.CreatedAt)
}

func TestListAge(t *testing.T) {
	store := snapshot.NewInMemory()
	created := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	seed(t, store, "Cache", created)

	now := created.Add(90 * time.Minute)
	listing, err := List(context.Background(), store, "Cache", WithNow(func() time.Time { return now }))
	require.NoError(t, err)
	require.Len(t, listing.Records, 1)
	assert.Equal(t, 90*time.Minute, listing.Records[0].Age)
	assert.InDelta(t, 1.5, listing.Records[0].AgeIn(time.Hour), 1e-9)
}

func TestListIgnoresForeignEntries(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	seed(t, store, "Cache", time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	seed(t, store, "Other", time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC))
	require.NoError(t, store.Write(ctx, snapshot.LockName("Cache"), []byte("lock")))
	require.NoError(t, store.Write(ctx, "Cache2024-03-10T08-00-00.log", []byte("log")))

	listing, err := List(ctx, store, "Cache")
	require.NoError(t, err)
	assert.Len(t, listing.Records, 1)
	assert.Empty(t, listing.ParseDefects)
}

func TestListSurfacesParseDefects(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewInMemory()
	seed(t, store, "Cache", time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	require.NoError(t, store.Write(ctx, "Cachenot-a-timestamp.snap", []byte("junk")))

	listing, err := List(ctx, store, "Cache")
	require.NoError(t, err)
	assert.Len(t, listing.Records, 1)
	require.Len(t, listing.ParseDefects, 1)
	assert.ErrorIs(t, listing.ParseDefects[0], snapshot.ErrBadName)
}

func TestListPolicyColumns(t *testing.T) {
	store := snapshot.NewInMemory()
	created := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	seed(t, store, "Cache", created)

	now := created.Add(2 * time.Hour)
	listing, err := List(context.Background(), store, "Cache",
		WithNow(func() time.Time { return now }),
		WithPolicies(policy.Set{
			"hourly": policy.Hourly,
			"daily":  policy.Daily,
		}))
	require.NoError(t, err)
	require.Len(t, listing.Records, 1)
	assert.True(t, listing.Records[0].Stale["hourly"])
	assert.False(t, listing.Records[0].Stale["daily"])
}

func TestListInvalidPolicySet(t *testing.T) {
	_, err := List(context.Background(), snapshot.NewInMemory(), "Cache",
		WithPolicies(policy.Set{"": policy.Daily}))
	assert.ErrorIs(t, err, policy.ErrInvalidSet)
}

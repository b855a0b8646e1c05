package dienstplan

import (
	"context"
	"errors"
	"perdisweb-backend/lib/kvstore"
	"perdisweb-backend/lib/scrapers/perdis"
	"perdisweb-backend/lib/timezone"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var sampleDay = perdis.DayRoster{
	{Line: "5", Start: "06:30", End: "08:45", Location: "Zentrum"},
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := newRosterCache(kvstore.NewMemoryStore(), CacheTTL)

	_, ok := cache.Get(ctx, "2026-01-03")
	require.False(t, ok)

	cache.Put(ctx, "2026-01-03", sampleDay)
	day, ok := cache.Get(ctx, "2026-01-03")
	require.True(t, ok)
	require.Equal(t, sampleDay, day)
}

func TestCacheConfirmedEmptyDay(t *testing.T) {
	ctx := context.Background()
	cache := newRosterCache(kvstore.NewMemoryStore(), CacheTTL)

	cache.Put(ctx, "2026-01-05", perdis.DayRoster{})
	day, ok := cache.Get(ctx, "2026-01-05")
	require.True(t, ok, "confirmed-empty must be distinct from absent")
	require.NotNil(t, day)
	require.Empty(t, day)
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	cache := newRosterCache(store, CacheTTL)

	cache.Put(ctx, "2026-01-03", sampleDay)

	cache.now = func() time.Time {
		return timezone.Now().Add(CacheTTL + time.Millisecond)
	}
	_, ok := cache.Get(ctx, "2026-01-03")
	require.False(t, ok)

	// the expired entry must also be purged from the store
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestCacheInvalidateAndClear(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	cache := newRosterCache(store, CacheTTL)

	// unrelated keys in the shared store must survive Clear
	require.NoError(t, store.Set(ctx, "settings:theme", []byte("dark")))

	cache.Put(ctx, "2026-01-03", sampleDay)
	cache.Put(ctx, "2026-01-04", perdis.DayRoster{})

	cache.Invalidate(ctx, "2026-01-03")
	_, ok := cache.Get(ctx, "2026-01-03")
	require.False(t, ok)
	_, ok = cache.Get(ctx, "2026-01-04")
	require.True(t, ok)

	cache.Clear(ctx)
	_, ok = cache.Get(ctx, "2026-01-04")
	require.False(t, ok)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"settings:theme"}, keys)
}

// brokenStore fails every operation; the cache must degrade to a miss
// rather than surface the failure.
type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk on fire")
}

func (brokenStore) Remove(ctx context.Context, key string) error {
	return errors.New("disk on fire")
}

func (brokenStore) Keys(ctx context.Context) ([]string, error) {
	return nil, errors.New("disk on fire")
}

func TestCacheStoreFailureIsAMiss(t *testing.T) {
	ctx := context.Background()
	cache := newRosterCache(brokenStore{}, CacheTTL)

	cache.Put(ctx, "2026-01-03", sampleDay)
	_, ok := cache.Get(ctx, "2026-01-03")
	require.False(t, ok)

	cache.Invalidate(ctx, "2026-01-03")
	cache.Clear(ctx)
}

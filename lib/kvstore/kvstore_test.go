package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	db, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": NewBadgerStore(db),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, "roster:2026-01-03", []byte("payload")))
			value, err := store.Get(ctx, "roster:2026-01-03")
			require.NoError(t, err)
			require.Equal(t, []byte("payload"), value)

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"roster:2026-01-03"}, keys)

			require.NoError(t, store.Remove(ctx, "roster:2026-01-03"))
			_, err = store.Get(ctx, "roster:2026-01-03")
			require.ErrorIs(t, err, ErrNotFound)

			// removing twice must not error
			require.NoError(t, store.Remove(ctx, "roster:2026-01-03"))
		})
	}
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/monistake/monistake-backend/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ms:snapshot:pool", []byte("1"), 0))

	got, err := store.Get(ctx, "ms:snapshot:pool")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	// returned slices are copies
	got[0] = 'x'
	again, err := store.Get(ctx, "ms:snapshot:pool")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), again)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestMemoryStore_Overwrite(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ms:snapshot:pool", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "ms:snapshot:pool", []byte("2"), 0))

	got, err := store.Get(ctx, "ms:snapshot:pool")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := New(0)
	defer store.Close()
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second))
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := New(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "ms:tx:1", []byte("pending"), 20*time.Millisecond))

	assert.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		_, present := store.entries["ms:tx:1"]
		return !present
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := New(0)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Ping(ctx), kv.ErrClosed)
	assert.ErrorIs(t, store.Set(ctx, "k", nil, 0), kv.ErrClosed)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrClosed)
}

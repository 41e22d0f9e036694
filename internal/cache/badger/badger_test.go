package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-extractor/internal/cache"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// openTest returns an in-memory cache whose clock advances one second per
// write, starting at base.
func openTest(t *testing.T, base time.Time) *Cache {
	t.Helper()
	c, err := Open("", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	tick := base
	c.now = func() time.Time {
		now := tick
		tick = tick.Add(time.Second)
		return now
	}
	return c
}

func TestSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := openTest(t, base)

	written, err := c.Set(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = c.Set(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, written)

	ts, err := c.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, base.Equal(ts), "got %s", ts)

	_, err = c.Get(ctx, "doc-2")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestOldestAndKeys(t *testing.T) {
	ctx := context.Background()
	c := openTest(t, time.Unix(1700000000, 0))

	for _, key := range []string{"c", "a", "b"} {
		_, err := c.Set(ctx, key)
		require.NoError(t, err)
	}

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, keys)

	oldest, err := c.Oldest(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "c", oldest)
	second, err := c.Oldest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", second)

	_, err = c.Oldest(ctx, 3)
	assert.ErrorIs(t, err, cache.ErrNotFound)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := openTest(t, time.Unix(1700000000, 0))

	_, err := c.Set(ctx, "x")
	require.NoError(t, err)

	deleted, err := c.Delete(ctx, "x")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete(ctx, "x")
	require.NoError(t, err)
	assert.False(t, deleted)

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// a deleted key can be recorded again with a fresh timestamp
	written, err := c.Set(ctx, "x")
	require.NoError(t, err)
	assert.True(t, written)
}

func TestEqualTimestampsOrderByKey(t *testing.T) {
	ctx := context.Background()
	c := openTest(t, time.Unix(1700000000, 0))
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	for _, key := range []string{"b", "a"} {
		_, err := c.Set(ctx, key)
		require.NoError(t, err)
	}
	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestPersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := Open(dir, logger.NewNop())
	require.NoError(t, err)
	_, err = c.Set(ctx, "kept")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(dir, logger.NewNop())
	require.NoError(t, err)
	defer c.Close()
	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, keys)
}

package cache_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-extractor/internal/cache"
	"github.com/feichai0017/document-extractor/internal/cache/badger"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

func TestEvictDropsOldest(t *testing.T) {
	ctx := context.Background()
	c, err := badger.Open("", logger.NewNop())
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 5; i++ {
		_, err := c.Set(ctx, fmt.Sprintf("doc-%d", i))
		require.NoError(t, err)
	}
	oldest, err := c.Oldest(ctx, 0)
	require.NoError(t, err)

	evicted, err := cache.Evict(ctx, c, 3)
	require.NoError(t, err)
	require.Len(t, evicted, 2)
	assert.Equal(t, oldest, evicted[0])

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	evicted, err = cache.Evict(ctx, c, 0)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}

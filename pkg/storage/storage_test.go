package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for _, key := range []string{"uploads/b.pdf", "uploads/a.png", "archive/c.jpg"} {
		stored, err := s.Store(ctx, strings.NewReader("data:"+key), key)
		require.NoError(t, err)
		assert.Equal(t, key, stored)
	}

	data, err := ReadAll(ctx, s, "uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, "data:uploads/a.png", string(data))

	objects, err := s.List(ctx, "uploads/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "uploads/a.png", objects[0].Key)
	assert.Equal(t, "uploads/b.pdf", objects[1].Key)
	assert.EqualValues(t, len("data:uploads/a.png"), objects[0].Size)

	require.NoError(t, s.Delete(ctx, "uploads/a.png"))
	_, err = s.Get(ctx, "uploads/a.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "uploads/a.png"), ErrObjectNotFound)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	for _, key := range []string{"2024/invoice-01.pdf", "2024/receipt.png", "2025/invoice-02.pdf"} {
		_, err := s.Store(ctx, strings.NewReader("x"), key)
		require.NoError(t, err)
	}

	found, err := Search(ctx, s, "invoice")
	require.NoError(t, err)
	keys := make([]string, len(found))
	for i, obj := range found {
		keys[i] = obj.Key
	}
	assert.Equal(t, []string{"2024/invoice-01.pdf", "2025/invoice-02.pdf"}, keys)

	found, err = Search(ctx, s, "missing")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStreamChunks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	payload := bytes.Repeat([]byte("0123456789"), 25)
	_, err := s.Store(ctx, bytes.NewReader(payload), "doc")
	require.NoError(t, err)

	var sizes []int
	var joined []byte
	err = s.Stream(ctx, "doc", 100, func(chunk []byte) error {
		sizes = append(sizes, len(chunk))
		joined = append(joined, chunk...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, sizes)
	assert.Equal(t, payload, joined)

	stop := errors.New("stop")
	calls := 0
	err = s.Stream(ctx, "doc", 100, func([]byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, s.Stream(ctx, "nope", 0, func([]byte) error { return nil }), ErrObjectNotFound)
}

func TestStreamChunksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := StreamChunks(ctx, strings.NewReader("abc"), 1, func([]byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryCleanupBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	_, err := s.Store(ctx, strings.NewReader("old"), "old")
	require.NoError(t, err)
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	_, err = s.Store(ctx, strings.NewReader("new"), "new")
	require.NoError(t, err)

	require.NoError(t, s.CleanupBefore(ctx, base.Add(24*time.Hour)))
	objects, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "new", objects[0].Key)
}

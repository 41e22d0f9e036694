//go:build cgo

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ts := time.Unix(1700000000, 0)

	require.NoError(t, s.Put(ctx, "doc-1", ts))

	rec, err := s.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", rec.ID)
	assert.True(t, ts.Equal(rec.Timestamp))
	assert.False(t, rec.Processed)
	assert.Empty(t, rec.Format)
	assert.Nil(t, rec.ProcessedAt)

	assert.ErrorIs(t, s.Put(ctx, "doc-1", ts), ErrDuplicateRecord)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMarkProcessed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, "doc-1", time.Unix(1700000000, 0)))

	done := time.Unix(1700000042, 0)
	require.NoError(t, s.MarkProcessed(ctx, "doc-1", "pdf", done))

	rec, err := s.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, rec.Processed)
	assert.Equal(t, "pdf", rec.Format)
	require.NotNil(t, rec.ProcessedAt)
	assert.True(t, done.Equal(*rec.ProcessedAt))

	assert.ErrorIs(t, s.MarkProcessed(ctx, "missing", "png", done), ErrRecordNotFound)
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, "b", time.Unix(300, 0)))
	require.NoError(t, s.Put(ctx, "a", time.Unix(100, 0)))
	require.NoError(t, s.Put(ctx, "c", time.Unix(200, 0)))

	records, err := s.List(ctx)
	require.NoError(t, err)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)

	require.NoError(t, s.Delete(ctx, "c"))
	assert.ErrorIs(t, s.Delete(ctx, "c"), ErrRecordNotFound)

	records, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "x", time.Unix(1, 0)))
	rec, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", rec.ID)
}

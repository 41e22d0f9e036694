package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-extractor/pkg/logger"
	"github.com/feichai0017/document-extractor/pkg/storage"
)

func TestNewMemory(t *testing.T) {
	log := logger.NewTestLogger()
	s, err := New(storage.StorageTypeMemory, log)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)
	assert.Equal(t, 1, log.Count("WARN"))
}

func TestNewUnsupported(t *testing.T) {
	_, err := New("ftp", logger.NewNop())
	assert.ErrorContains(t, err, "unsupported storage type: ftp")
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// StorageType selects a blob store backend
type StorageType string

const (
	StorageTypeS3     StorageType = "s3"
	StorageTypeMinio  StorageType = "minio"
	StorageTypeMemory StorageType = "memory"
)

// DefaultChunkSize is used by Stream when the caller passes no chunk size.
const DefaultChunkSize = 1 << 20

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Storage is the blob store holding uploaded documents.
type Storage interface {
	// Store writes the reader under key and returns the stored key
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens an object; missing keys yield ErrObjectNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes an existing object; missing keys yield ErrObjectNotFound
	Delete(ctx context.Context, key string) error
	// List returns the objects whose key starts with prefix, sorted by key
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Stream hands the object to fn in chunks of at most chunkSize bytes
	Stream(ctx context.Context, key string, chunkSize int, fn func([]byte) error) error
	// CleanupBefore removes objects last modified before threshold
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// Search returns the objects whose key contains substr.
func Search(ctx context.Context, s Storage, substr string) ([]ObjectInfo, error) {
	objects, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	matches := objects[:0]
	for _, obj := range objects {
		if strings.Contains(obj.Key, substr) {
			matches = append(matches, obj)
		}
	}
	return matches, nil
}

// ReadAll downloads a whole object.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// StreamChunks reads r to the end, calling fn with each chunk. The slice
// passed to fn is reused between calls.
func StreamChunks(ctx context.Context, r io.Reader, chunkSize int, fn func([]byte) error) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("failed to read chunk: %w", err)
		}
	}
}

func sortByKey(objects []ObjectInfo) {
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
}

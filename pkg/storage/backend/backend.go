// Package backend builds the configured storage.Storage implementation.
package backend

import (
	"fmt"

	"github.com/feichai0017/document-extractor/pkg/logger"
	"github.com/feichai0017/document-extractor/pkg/storage"
	"github.com/feichai0017/document-extractor/pkg/storage/minio"
	"github.com/feichai0017/document-extractor/pkg/storage/s3"
)

// New creates the storage backend named by storageType.
func New(storageType storage.StorageType, log logger.Logger) (storage.Storage, error) {
	switch storageType {
	case storage.StorageTypeS3:
		return s3.NewS3Storage(log)
	case storage.StorageTypeMinio:
		return minio.NewMinioStorage(log)
	case storage.StorageTypeMemory:
		log.Warn("Using in-memory storage, uploads are lost on restart")
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

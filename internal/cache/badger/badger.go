// Package badger keeps the upload cache in an embedded Badger database for
// deployments without Redis.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/feichai0017/document-extractor/internal/cache"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// Every entry is written twice: entryPrefix+key holds the timestamp and
// orderPrefix+timestamp+key is an empty index row iterated in time order.
var (
	entryPrefix = []byte("e/")
	orderPrefix = []byte("o/")
)

type Cache struct {
	db  *badger.DB
	now func() time.Time
}

var _ cache.Cache = (*Cache)(nil)

// Open opens (or creates) the database in dir. An empty dir keeps the
// database in memory.
func Open(dir string, log logger.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	log.Info("Badger cache opened", logger.String("dir", dir), logger.Bool("inMemory", dir == ""))
	return &Cache{db: db, now: time.Now}, nil
}

func entryKey(key string) []byte {
	return append(append([]byte(nil), entryPrefix...), key...)
}

func orderKey(ms int64, key string) []byte {
	k := make([]byte, 0, len(orderPrefix)+8+len(key))
	k = append(k, orderPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(ms))
	return append(k, key...)
}

func (c *Cache) Set(ctx context.Context, key string) (bool, error) {
	written := false
	err := c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(entryKey(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		ms := c.now().UnixMilli()
		value := binary.BigEndian.AppendUint64(nil, uint64(ms))
		if err := txn.Set(entryKey(key), value); err != nil {
			return err
		}
		if err := txn.Set(orderKey(ms, key), nil); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to set cache entry: %w", err)
	}
	return written, nil
}

func (c *Cache) timestamp(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get(entryKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%w: %s", cache.ErrNotFound, key)
	}
	if err != nil {
		return 0, err
	}
	var ms int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt cache entry %s", key)
		}
		ms = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return ms, err
}

func (c *Cache) Get(ctx context.Context, key string) (time.Time, error) {
	var ms int64
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		ms, err = c.timestamp(txn, key)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// scan walks the order index from oldest to newest until fn returns false.
func (c *Cache) scan(fn func(key string) bool) error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = orderPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			if !fn(string(k[len(orderPrefix)+8:])) {
				return nil
			}
		}
		return nil
	})
}

func (c *Cache) Oldest(ctx context.Context, i int) (string, error) {
	found, n := "", 0
	ok := false
	err := c.scan(func(key string) bool {
		if n == i {
			found, ok = key, true
			return false
		}
		n++
		return true
	})
	if err != nil {
		return "", fmt.Errorf("failed to read oldest entry: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: index %d", cache.ErrNotFound, i)
	}
	return found, nil
}

func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	deleted := false
	err := c.db.Update(func(txn *badger.Txn) error {
		ms, err := c.timestamp(txn, key)
		if errors.Is(err, cache.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(entryKey(key)); err != nil {
			return err
		}
		if err := txn.Delete(orderKey(ms, key)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return deleted, nil
}

func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.scan(func(key string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	return keys, nil
}

func (c *Cache) Len(ctx context.Context) (int, error) {
	n := 0
	err := c.scan(func(string) bool {
		n++
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Package cache is a small embedded key-value cache for rendered fragments:
// sidebar tag counts, recent-post lists, the RSS feed body. Entries carry a
// TTL and the whole store lives under the data directory, so a cold start
// simply begins empty.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache wraps a badger store with TTL semantics. A nil *Cache is a valid
// no-op cache, so callers never branch on whether caching is enabled.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates or opens the cache at dir.
func Open(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached value for key, or ErrMiss.
func (c *Cache) Get(key string) ([]byte, error) {
	if c == nil {
		return nil, ErrMiss
	}
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key with the cache TTL.
func (c *Cache) Set(key string, value []byte) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// Invalidate removes key. Missing keys are not an error.
func (c *Cache) Invalidate(key string) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// InvalidateAll drops every entry. Called after imports and content writes.
func (c *Cache) InvalidateAll() error {
	if c == nil {
		return nil
	}
	return c.db.DropAll()
}

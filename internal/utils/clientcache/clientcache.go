// Package clientcache caches constructed SDK clients keyed by a hash of
// their configuration, so repeated invocations of the same provider reuse
// one client and its connection pool.
package clientcache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is a type-safe client cache. singleflight collapses concurrent
// construction of the same key into one factory call.
type Cache[T any] struct {
	cache   sync.Map
	sfGroup singleflight.Group
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{}
}

// GetOrCreate returns the cached client for key, building it with factory on
// first use. The factory runs at most once per key under concurrent load.
func (c *Cache[T]) GetOrCreate(key string, factory func() (T, error)) (T, error) {
	if cached, ok := c.cache.Load(key); ok {
		return cached.(T), nil
	}

	v, err, _ := c.sfGroup.Do(key, func() (any, error) {
		// Re-check: another goroutine may have stored while we queued.
		if cached, ok := c.cache.Load(key); ok {
			return cached.(T), nil
		}

		client, err := factory()
		if err != nil {
			var zero T
			return zero, err
		}
		c.cache.Store(key, client)
		return client, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Delete drops one cached client, forcing reconstruction on next use.
func (c *Cache[T]) Delete(key string) {
	c.cache.Delete(key)
}

// Package memcache implements the Cache port with an in-process map.
package memcache

import (
	"context"
	"sync"

	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Cache = (*Cache)(nil)

// Cache is a mutex-guarded in-process cache. Values live until deleted;
// the refresh controller owns invalidation, so no TTL is needed.
type Cache struct {
	mu     sync.RWMutex
	values map[string]any
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{values: make(map[string]any)}
}

func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[key]
	return value, ok
}

func (c *Cache) Set(_ context.Context, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// Delete removes the key and reports whether it existed.
func (c *Cache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	delete(c.values, key)
	return ok, nil
}

func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[key]
	return ok, nil
}

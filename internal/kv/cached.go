package kv

import (
	"context"
	"log/slog"
	"time"

	"ahorro/internal/cache"
)

// Cached is a read-through decorator. Writes go to the inner store first and
// then refresh the cache; Keys always hits the inner store.
type Cached struct {
	inner Store
	cache cache.Cache[string]
}

var _ Store = (*Cached)(nil)

func NewCached(inner Store, size int, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: cache.NewLRUCache[string](size, ttl)}
}

// Cleaner exposes the underlying cache for periodic sweeping.
func (c *Cached) Cleaner() cache.Cleaner {
	if cl, ok := c.cache.(cache.Cleaner); ok {
		return cl
	}
	return nil
}

func (c *Cached) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, true, nil
	}
	v, ok, err := c.inner.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	c.cache.Set(key, v)
	return v, true, nil
}

func (c *Cached) Set(ctx context.Context, key, value string) error {
	if err := c.inner.Set(ctx, key, value); err != nil {
		c.cache.Delete(key)
		return err
	}
	c.cache.Set(key, value)
	return nil
}

func (c *Cached) SetMany(ctx context.Context, pairs map[string]string) error {
	if err := c.inner.SetMany(ctx, pairs); err != nil {
		for k := range pairs {
			c.cache.Delete(k)
		}
		return err
	}
	for k, v := range pairs {
		c.cache.Set(k, v)
	}
	slog.DebugContext(ctx, "Cache refreshed after batch write", "keys", len(pairs))
	return nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return c.inner.Delete(ctx, key)
}

func (c *Cached) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.inner.Keys(ctx, prefix)
}

// Close closes the inner store when it holds resources.
func (c *Cached) Close() error {
	if cl, ok := c.inner.(Closer); ok {
		return cl.Close()
	}
	return nil
}

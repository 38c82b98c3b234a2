package spacetraveling

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/gustavonogales/spacetraveling/prismic"
)

// DefaultCacheSize is the entry limit of a Cache created with size <= 0.
const DefaultCacheSize = 1024

// Cache is an in-memory keyed cache of upstream results with a TTL. It
// holds at most size entries, evicting the least recently used.
// Concurrent misses for one key share a single fill.
type Cache[V any] struct {
	entries *lru.Cache[string, cacheEntry[V]]
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value   V
	fetched time.Time
}

// NewCache creates a Cache of up to size entries that are fresh for ttl.
func NewCache[V any](ttl time.Duration, size int) *Cache[V] {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, cacheEntry[V]](size)
	return &Cache[V]{
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *Cache[V]) Invalidate() {
	c.entries.Purge()
}

// Get returns the value cached under key, calling fill when it is missing
// or expired. When fill fails with an upstream error and an expired value
// is held, that value is returned with stale set, together with the fill
// error. Any other fill error is returned as is.
func (c *Cache[V]) Get(ctx context.Context, key string, fill func(context.Context) (V, error)) (v V, stale bool, err error) {
	e, ok := c.entries.Get(key)
	if ok && c.now().Sub(e.fetched) < c.ttl {
		return e.value, false, nil
	}

	// The fill outlives a single caller going away; the others still wait on it.
	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := fill(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		c.entries.Add(key, cacheEntry[V]{value: v, fetched: c.now()})
		return v, nil
	})
	if err != nil {
		var ue *prismic.UpstreamError
		if ok && errors.As(err, &ue) {
			return e.value, true, err
		}
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// Len returns the number of entries held, fresh or not.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

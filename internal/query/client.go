// Package query caches the results of keyed remote fetches for a short
// staleness window and joins concurrent fetches of the same key.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStaleTime is how long a fetched result is reused without refetching.
	DefaultStaleTime = 5 * time.Second
	// DefaultCacheSize keeps the current and the immediately previous page.
	DefaultCacheSize = 2
)

// Key identifies a movie search fetch.
type Key struct {
	Query string
	Page  int
}

// String returns the cache key, e.g. "movies:dune:2".
func (k Key) String() string {
	return fmt.Sprintf("movies:%s:%d", k.Query, k.Page)
}

// Empty reports whether the key has no query text; such keys are never fetched.
func (k Key) Empty() bool {
	return strings.TrimSpace(k.Query) == ""
}

// FetchFunc performs the actual remote call for a key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	StaleTime time.Duration
	CacheSize int
	Logger    *slog.Logger
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Client is safe for concurrent use.
type Client[T any] struct {
	group  singleflight.Group
	cache  *cache[T]
	logger *slog.Logger
}

// New creates a Client.
func New[T any](opts Options) *Client[T] {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client[T]{
		cache:  newCache[T](opts.CacheSize, opts.StaleTime, opts.Now),
		logger: opts.Logger,
	}
}

// Peek returns the cached value for key if it is still fresh.
func (c *Client[T]) Peek(key Key) (T, bool) {
	return c.cache.Get(key.String())
}

// Fetch returns the fresh cached value for key, joins an outstanding fetch
// for the same key, or calls fn. Only successful results are cached.
func (c *Client[T]) Fetch(ctx context.Context, key Key, fn FetchFunc[T]) (T, error) {
	k := key.String()
	if v, ok := c.cache.Get(k); ok {
		c.logger.Debug("query cache hit", slog.String("key", k))
		return v, nil
	}

	v, err, shared := c.group.Do(k, func() (any, error) {
		// A caller that lost the race may find the value already cached.
		if v, ok := c.cache.Get(k); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		c.cache.Set(k, v)
		return v, nil
	})
	if shared {
		c.logger.Debug("joined in-flight fetch", slog.String("key", k))
	}
	if err != nil {
		var zero T
		return zero, err
	}
	val, _ := v.(T)
	return val, nil
}

// Invalidate drops the cached value for key so the next Fetch refetches.
func (c *Client[T]) Invalidate(key Key) {
	c.cache.Delete(key.String())
}

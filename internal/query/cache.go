// Package query caches backend reads for one session. Results are keyed by
// their query parameters, so a late response for one month can never be
// shown for another.
package query

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetcal/internal/cache"
	"budgetcal/internal/log"
)

const (
	DefaultStaleTime    = 5 * time.Minute
	DefaultGCTime       = 10 * time.Minute
	DefaultMaxEntries   = 64
	DefaultFetchTimeout = 10 * time.Second
)

// Options configures a Cache.
type Options struct {
	// StaleTime is how long a result is served without refetching.
	StaleTime time.Duration
	// GCTime is how long an unused result is kept at all.
	GCTime     time.Duration
	MaxEntries int
	// FetchTimeout bounds every backend call the cache makes. Shared calls
	// outlive the request that started them, so they need their own limit.
	FetchTimeout time.Duration
	Logger       *log.Logger
	Now          func() time.Time
	// OnLookup, when set, is told whether each read was served fresh.
	OnLookup func(hit bool)
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache holds one session's query results.
type Cache struct {
	entries      *cache.LRUCache[entry]
	group        singleflight.Group
	staleTime    time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *log.Logger
	onLookup     func(hit bool)

	mu         sync.Mutex
	generation uint64
	prefetches sync.WaitGroup
}

func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.GCTime < opts.StaleTime {
		opts.GCTime = max(DefaultGCTime, opts.StaleTime)
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Cache{
		entries:      cache.NewLRUCache[entry](opts.MaxEntries, opts.GCTime).WithClock(opts.Now),
		staleTime:    opts.StaleTime,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
		logger:       opts.Logger.WithComponent(log.ComponentQuery),
		onLookup:     opts.OnLookup,
	}
}

// Fetch returns the fresh cached result for key, or calls fn. Concurrent
// fetches of one key share a single call, but only within one generation: a
// fetch that starts after an invalidation never joins a call that began
// before it, and that older call does not store its result.
//
// The shared call keeps ctx's values but not its cancellation, so one caller
// giving up does not fail the others. Each caller still returns as soon as
// its own ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.fresh(key); ok {
		if typed, ok := v.(T); ok {
			c.lookup(true)
			return typed, nil
		}
	}
	c.lookup(false)

	gen := c.currentGeneration()
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		value, err := fn(callCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, value, gen)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Prefetch loads key in the background unless it is already fresh. Errors
// are logged at debug level and otherwise ignored.
func Prefetch[T any](c *Cache, key string, fn func(context.Context) (T, error)) {
	if _, ok := c.fresh(key); ok {
		return
	}
	c.prefetches.Add(1)
	go func() {
		defer c.prefetches.Done()
		if _, err := Fetch(context.Background(), c, key, fn); err != nil {
			c.logger.Debug("Prefetch failed",
				log.FieldCacheKey, key,
				log.FieldOperation, log.OpPrefetch,
				log.FieldError, err.Error())
		}
	}()
}

// Wait blocks until every running prefetch has finished.
func (c *Cache) Wait() {
	c.prefetches.Wait()
}

// Invalidate drops every result whose key starts with prefix. Fetches
// already in flight will not store their results, and later fetches start
// their own calls instead of joining them.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
	n := c.entries.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
	if n > 0 {
		c.logger.Debug("Query cache invalidated", log.FieldCacheKey, prefix, "removed", n)
	}
	return n
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.Invalidate("")
}

// CleanExpired lets a cache.Manager sweep unused results.
func (c *Cache) CleanExpired() int {
	return c.entries.CleanExpired()
}

func (c *Cache) Size() int {
	return c.entries.Size()
}

func (c *Cache) fresh(key string) (any, bool) {
	e, ok := c.entries.Get(key)
	if !ok || c.now().Sub(e.fetchedAt) >= c.staleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cache) store(key string, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.entries.Set(key, entry{value: value, fetchedAt: c.now()})
}

func (c *Cache) lookup(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

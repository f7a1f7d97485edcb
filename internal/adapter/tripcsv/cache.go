package tripcsv

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
)

var errNotLoaded = errors.New("dataset not loaded yet")

// CachedLoader memoizes a Loader by row limit. Entries never expire; the
// least recently used limit is evicted once maxEntries is exceeded.
// Concurrent misses for the same limit share a single fetch.
type CachedLoader struct {
	inner   domain.Loader
	cache   *lruCache
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedLoader creates a memoizing decorator around a loader.
func NewCachedLoader(inner domain.Loader, maxEntries int, metrics *observability.Metrics) *CachedLoader {
	return &CachedLoader{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLoader) Load(ctx context.Context, nrows int) (domain.Dataset, error) {
	if ds, ok := c.cache.get(nrows); ok {
		c.metrics.DatasetCache.WithLabelValues("hit").Inc()
		return ds, nil
	}

	res, err := c.loadShared(ctx, nrows)
	switch {
	case err != nil && ctx.Err() != nil:
		// This caller stopped waiting; the fetch carries on for the others.
		return domain.Dataset{}, err
	case err != nil:
		c.metrics.DatasetCache.WithLabelValues("miss").Inc()
		return domain.Dataset{}, err
	case res.fromCache:
		c.metrics.DatasetCache.WithLabelValues("hit").Inc()
	default:
		c.metrics.DatasetCache.WithLabelValues("miss").Inc()
	}
	return res.ds, nil
}

type loadResult struct {
	ds        domain.Dataset
	fromCache bool
}

// loadShared joins or starts the fetch for nrows. The fetch is detached from
// ctx, which only bounds how long this caller waits; the inner loader's own
// timeout still applies.
func (c *CachedLoader) loadShared(ctx context.Context, nrows int) (loadResult, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.Itoa(nrows), func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if ds, ok := c.cache.get(nrows); ok {
			return loadResult{ds: ds, fromCache: true}, nil
		}
		start := time.Now()
		ds, err := c.inner.Load(fetchCtx, nrows)
		if err != nil {
			return loadResult{}, err
		}
		c.metrics.DatasetFetchDuration.Observe(time.Since(start).Seconds())
		c.metrics.DatasetRows.Set(float64(ds.Len()))
		c.cache.put(nrows, ds)
		return loadResult{ds: ds}, nil
	})

	select {
	case <-ctx.Done():
		return loadResult{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return loadResult{}, r.Err
		}
		return r.Val.(loadResult), nil
	}
}

// Loaded reports whether any dataset is currently memoized.
func (c *CachedLoader) Loaded() bool {
	return c.cache.len() > 0
}

// lruCache is a simple thread-safe LRU cache of datasets keyed by row limit.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[int]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   int
	value domain.Dataset
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[int]*entry),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) get(key int) (domain.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Dataset{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key int, value domain.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

// CheckReadiness reports an error until the first dataset has been memoized.
func (c *CachedLoader) CheckReadiness(_ context.Context) error {
	if !c.Loaded() {
		return errNotLoaded
	}
	return nil
}

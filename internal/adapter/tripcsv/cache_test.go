package tripcsv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/observability"
)

// --- mock for cache tests ---

type countingLoader struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (m *countingLoader) Load(_ context.Context, nrows int) (domain.Dataset, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return domain.Dataset{}, m.err
	}
	trips := make([]domain.Trip, nrows)
	return domain.Dataset{Trips: trips, Limit: nrows}, nil
}

type gatedLoader struct {
	calls   atomic.Int64
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
}

func (m *gatedLoader) Load(ctx context.Context, nrows int) (domain.Dataset, error) {
	if m.calls.Add(1) == 1 {
		close(m.started)
	}
	<-m.release
	m.ctxErr <- ctx.Err()
	return domain.Dataset{Trips: make([]domain.Trip, nrows), Limit: nrows}, nil
}

// --- CachedLoader tests ---

func TestCachedLoader_CacheHit(t *testing.T) {
	inner := &countingLoader{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLoader(inner, 4, metrics)

	ds1, err := cached.Load(context.Background(), 3)
	require.NoError(t, err)
	ds2, err := cached.Load(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, ds1, ds2)
	assert.Equal(t, int64(1), inner.calls.Load(), "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DatasetCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DatasetCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.DatasetRows), 0)
	assert.True(t, cached.Loaded())
}

func TestCachedLoader_DifferentLimitsMiss(t *testing.T) {
	inner := &countingLoader{}
	cached := NewCachedLoader(inner, 4, observability.NewMetricsForTesting())

	_, _ = cached.Load(context.Background(), 10)
	_, _ = cached.Load(context.Background(), 20)

	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedLoader_ErrorsAreNotCached(t *testing.T) {
	inner := &countingLoader{err: errors.New("connection reset")}
	cached := NewCachedLoader(inner, 4, observability.NewMetricsForTesting())

	_, err := cached.Load(context.Background(), 10)
	require.Error(t, err)
	_, err = cached.Load(context.Background(), 10)
	require.Error(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
	assert.False(t, cached.Loaded())
}

func TestCachedLoader_ConcurrentMissesShareFetch(t *testing.T) {
	inner := &countingLoader{delay: 50 * time.Millisecond}
	cached := NewCachedLoader(inner, 4, observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := cached.Load(context.Background(), 5)
			assert.NoError(t, err)
			assert.Equal(t, 5, ds.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedLoader_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := newGatedLoader()
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLoader(inner, 4, metrics)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cached.Load(ctxA, 5)
		errA <- err
	}()
	<-inner.started

	type result struct {
		ds  domain.Dataset
		err error
	}
	resB := make(chan result, 1)
	go func() {
		ds, err := cached.Load(context.Background(), 5)
		resB <- result{ds, err}
	}()
	time.Sleep(20 * time.Millisecond) // let B join the in-flight fetch

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(inner.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 5, b.ds.Len())
	assert.NoError(t, <-inner.ctxErr, "fetch must not see the first caller's cancellation")
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.True(t, cached.Loaded())
}

func TestCachedLoader_CancelledCallerReturnsPromptly(t *testing.T) {
	inner := newGatedLoader()
	cached := NewCachedLoader(inner, 4, observability.NewMetricsForTesting())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cached.Load(ctx, 5)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The detached fetch still completes and fills the cache.
	close(inner.release)
	require.NoError(t, <-inner.ctxErr)
	require.Eventually(t, cached.Loaded, time.Second, 5*time.Millisecond)
	ds, err := cached.Load(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedLoader_RecheckServedFromCacheCountsAsHit(t *testing.T) {
	inner := &countingLoader{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLoader(inner, 4, metrics)

	// The entry lands between the fast-path lookup and the shared fetch.
	cached.cache.put(5, domain.Dataset{Trips: make([]domain.Trip, 5), Limit: 5})
	res, err := cached.loadShared(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, res.fromCache)
	assert.Zero(t, inner.calls.Load())
}

func TestCachedLoader_OutcomeCountsMatchCallers(t *testing.T) {
	inner := &countingLoader{delay: 50 * time.Millisecond}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLoader(inner, 4, metrics)

	const callers = 8
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Load(context.Background(), 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	hits := testutil.ToFloat64(metrics.DatasetCache.WithLabelValues("hit"))
	misses := testutil.ToFloat64(metrics.DatasetCache.WithLabelValues("miss"))
	assert.InDelta(t, callers, hits+misses, 0)
	assert.GreaterOrEqual(t, misses, 1.0)
	assert.Equal(t, int64(1), inner.calls.Load())
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put(1, domain.Dataset{Limit: 1})
	c.put(2, domain.Dataset{Limit: 2})

	ds, ok := c.get(1)
	assert.True(t, ok)
	assert.Equal(t, 1, ds.Limit)

	_, ok = c.get(99)
	assert.False(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put(1, domain.Dataset{Limit: 1})
	c.put(2, domain.Dataset{Limit: 2})
	c.put(3, domain.Dataset{Limit: 3}) // evicts 1

	_, ok := c.get(1)
	assert.False(t, ok, "1 should have been evicted")

	_, ok = c.get(2)
	assert.True(t, ok)
	_, ok = c.get(3)
	assert.True(t, ok)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put(1, domain.Dataset{Limit: 1})
	c.put(2, domain.Dataset{Limit: 2})

	c.get(1)
	c.put(3, domain.Dataset{Limit: 3}) // evicts 2, not 1

	_, ok := c.get(1)
	assert.True(t, ok, "1 was accessed recently, should not be evicted")
	_, ok = c.get(2)
	assert.False(t, ok, "2 should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put(1, domain.Dataset{Source: "a"})
	c.put(1, domain.Dataset{Source: "b"})

	ds, ok := c.get(1)
	assert.True(t, ok)
	assert.Equal(t, "b", ds.Source)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_MinimumCapacity(t *testing.T) {
	c := newLRUCache(0)
	c.put(1, domain.Dataset{})
	_, ok := c.get(1)
	assert.True(t, ok)
}

func TestCachedLoader_CheckReadiness(t *testing.T) {
	cached := NewCachedLoader(&countingLoader{}, 4, observability.NewMetricsForTesting())
	require.Error(t, cached.CheckReadiness(context.Background()))

	_, err := cached.Load(context.Background(), 2)
	require.NoError(t, err)
	assert.NoError(t, cached.CheckReadiness(context.Background()))
}

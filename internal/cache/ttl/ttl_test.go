package ttl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New[string, int](time.Minute)
	c.SetClock(func() time.Time { return now })

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 42)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	// Still fresh at exactly the deadline.
	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Nanosecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestGetOrFetchCachesOnlySuccess(t *testing.T) {
	c := New[string, string](time.Minute)

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("upstream down")
		}
		return "value", nil
	}

	_, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len(), "errors must not be cached")

	v, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	// Third call served from cache.
	v, err = c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 2, calls)
}

func TestGetOrFetchCollapsesConcurrentMisses(t *testing.T) {
	c := New[string, int](time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	const workers = 8
	results := make(chan int, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "k", fetch)
			require.NoError(t, err)
			results <- v
		}()
	}

	// Let every goroutine reach the cache before the fetch completes.
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for v := range results {
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, int32(1), calls.Load(), "concurrent misses must share one fetch")
}

func TestGetOrFetchSharedError(t *testing.T) {
	c := New[string, int](time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, errors.New("upstream down")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrFetch(context.Background(), "k", fetch)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)
	// Give the second goroutine time to register as a waiter before the
	// leader is released.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.EqualError(t, err, "upstream down")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, c.Len(), "errors must not be cached")
}

func TestPurge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New[string, int](time.Minute)
	c.SetClock(func() time.Time { return now })

	c.Set("old", 1)
	now = now.Add(30 * time.Second)
	c.Set("fresh", 2)
	assert.Equal(t, 2, c.Len())

	now = now.Add(45 * time.Second) // "old" expired, "fresh" not
	c.Purge()
	assert.Equal(t, 1, c.Len())

	v, ok := c.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

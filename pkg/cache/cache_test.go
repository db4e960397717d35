package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced time source.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, cfg Config, clock *testClock) *Store[string] {
	t.Helper()
	opts := []Option[string]{}
	if clock != nil {
		opts = append(opts, WithClock[string](clock.Now))
	}
	store, err := New[string](context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newTestStore(t, Config{}, nil)

	_, ok := store.Get("missing")
	assert.False(t, ok)

	isNew, err := store.Set("key1", "value1")
	require.NoError(t, err)
	assert.True(t, isNew)

	value, ok := store.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", value)

	isNew, err = store.Set("key1", "value1b")
	require.NoError(t, err)
	assert.False(t, isNew)

	deleted, err := store.Delete("key1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete("key1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestEmptyKeyRejected(t *testing.T) {
	store := newTestStore(t, Config{}, nil)
	_, err := store.Set("", "v")
	assert.Error(t, err)
}

func TestTTLExpiry(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, Config{DefaultTTL: time.Minute}, clock)

	_, err := store.Set("key1", "value1")
	require.NoError(t, err)

	value, ok := store.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", value)

	clock.Advance(time.Minute + time.Second)

	_, ok = store.Get("key1")
	assert.False(t, ok)
	assert.False(t, store.Has("key1"))
}

func TestPerEntryTTLOverride(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, Config{DefaultTTL: time.Minute}, clock)

	_, err := store.Set("short", "v", 10*time.Second)
	require.NoError(t, err)
	_, err = store.Set("long", "v", 10*time.Minute)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.False(t, store.Has("short"))
	assert.True(t, store.Has("long"))
}

func TestLRUEvictionOnOverflow(t *testing.T) {
	store := newTestStore(t, Config{MaxEntries: 3}, nil)

	for i := 1; i <= 3; i++ {
		_, err := store.Set(fmt.Sprintf("key%d", i), "v")
		require.NoError(t, err)
	}

	// key1 becomes most recently used; key2 is now the LRU victim
	_, ok := store.Get("key1")
	require.True(t, ok)

	_, err := store.Set("key4", "v")
	require.NoError(t, err)

	assert.Equal(t, 3, store.Size())
	assert.False(t, store.Has("key2"), "least recently accessed key must be evicted")
	assert.True(t, store.Has("key1"), "most recently accessed key must survive")
	assert.True(t, store.Has("key4"))
	assert.Equal(t, int64(1), store.Stats().Evictions())
}

func TestMemoryEvictionLRUFirst(t *testing.T) {
	big := make([]byte, 300)
	for i := range big {
		big[i] = 'x'
	}
	payload := string(big)

	store, err := New[string](context.Background(), Config{MaxEntries: 100, MaxMemory: 1000})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// Each value serializes to ~300 bytes; the fourth insert must evict the
	// oldest entries until the footprint fits again.
	for i := 1; i <= 4; i++ {
		_, err := store.Set(fmt.Sprintf("key%d", i), payload)
		require.NoError(t, err)
	}

	assert.False(t, store.Has("key1"))
	assert.True(t, store.Has("key4"))
	assert.LessOrEqual(t, store.MemoryUsage(), int64(1000))
}

func TestTouchExtendsLife(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, Config{DefaultTTL: time.Minute}, clock)

	_, err := store.Set("key1", "v")
	require.NoError(t, err)

	clock.Advance(50 * time.Second)
	assert.True(t, store.Touch("key1"))

	clock.Advance(30 * time.Second)
	assert.True(t, store.Has("key1"), "touched entry must survive past its original expiry")

	clock.Advance(time.Minute)
	assert.False(t, store.Touch("key1"), "expired entry cannot be touched back to life")
}

func TestTouchWithNewTTL(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, Config{DefaultTTL: time.Minute}, clock)

	_, err := store.Set("key1", "v")
	require.NoError(t, err)
	require.True(t, store.Touch("key1", time.Hour))

	clock.Advance(30 * time.Minute)
	assert.True(t, store.Has("key1"))
}

func TestInvalidatePattern(t *testing.T) {
	store := newTestStore(t, Config{}, nil)

	for _, key := range []string{"lights:abc", "groups:abc", "lights:def", "apikey:abc"} {
		_, err := store.Set(key, "v")
		require.NoError(t, err)
	}

	removed, err := store.InvalidatePattern("lights:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, store.Has("lights:abc"))
	assert.True(t, store.Has("groups:abc"))

	removed, err = store.InvalidatePattern("*:abc")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, store.Has("lights:def"))

	_, err = store.InvalidatePattern("[bad")
	assert.Error(t, err)
}

func TestGetOrSet(t *testing.T) {
	store := newTestStore(t, Config{}, nil)

	calls := 0
	compute := func() (string, error) {
		calls++
		return "computed", nil
	}

	value, err := store.GetOrSet("key1", compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.Equal(t, 1, calls)

	value, err = store.GetOrSet("key1", compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.Equal(t, 1, calls, "second lookup must be served from cache")
}

func TestGetOrSetNeverCachesErrors(t *testing.T) {
	store := newTestStore(t, Config{}, nil)

	boom := fmt.Errorf("upstream unavailable")
	_, err := store.GetOrSet("key1", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.Has("key1"))

	// A later successful compute must run, not be shadowed by a cached error
	value, err := store.GetOrSet("key1", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestHasDoesNotPromote(t *testing.T) {
	store := newTestStore(t, Config{MaxEntries: 2}, nil)

	_, err := store.Set("key1", "v")
	require.NoError(t, err)
	_, err = store.Set("key2", "v")
	require.NoError(t, err)

	// Has must not refresh key1's LRU position
	require.True(t, store.Has("key1"))

	_, err = store.Set("key3", "v")
	require.NoError(t, err)
	assert.False(t, store.Has("key1"), "Has must not count as an access")
}

func TestKeysSkipExpired(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, Config{DefaultTTL: time.Minute}, clock)

	_, err := store.Set("stale", "v", time.Second)
	require.NoError(t, err)
	_, err = store.Set("fresh", "v")
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"fresh"}, store.Keys())
}

func TestSweepPurgesExpired(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, Config{DefaultTTL: time.Second, SweepInterval: 10 * time.Millisecond}, clock)

	_, err := store.Set("key1", "v")
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	// Wait for at least one sweep pass instead of relying on lazy expiry
	assert.Eventually(t, func() bool { return store.Size() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestClear(t *testing.T) {
	store := newTestStore(t, Config{}, nil)

	evicted := make(map[string]bool)
	evictStore, err := New[string](context.Background(), Config{},
		WithEvictionCallback[string](func(key string, _ string) { evicted[key] = true }))
	require.NoError(t, err)
	defer func() { _ = evictStore.Close() }()

	for _, st := range []*Store[string]{store, evictStore} {
		_, err := st.Set("a", "v")
		require.NoError(t, err)
		_, err = st.Set("b", "v")
		require.NoError(t, err)
		st.Clear()
		assert.Equal(t, 0, st.Size())
		assert.Equal(t, int64(0), st.MemoryUsage())
	}
	assert.True(t, evicted["a"])
	assert.True(t, evicted["b"])
}

func TestEvictionCallbackCanReenterStore(t *testing.T) {
	var store *Store[string]
	store, err := New[string](context.Background(), Config{MaxEntries: 1},
		WithEvictionCallback[string](func(key string, _ string) {
			store.Has(key)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Set("first", "v")
	require.NoError(t, err)

	// Overflowing the store fires the callback, which re-enters it. Run
	// behind a watchdog so a regression fails instead of hanging.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Set("second", "v")
		store.Clear()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("eviction callback blocked the store")
	}
	assert.Equal(t, 0, store.Size())
}

func TestStatsTracking(t *testing.T) {
	store := newTestStore(t, Config{}, nil)

	_, err := store.Set("key1", "v")
	require.NoError(t, err)
	store.Get("key1")
	store.Get("nope")

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(1), stats.Sets())
	assert.InDelta(t, 0.5, stats.HitRatio(), 0.001)

	rolling, samples := stats.RollingHitRatio()
	assert.Equal(t, 2, samples)
	assert.InDelta(t, 0.5, rolling, 0.001)
}

func TestConcurrentAccess(t *testing.T) {
	store := newTestStore(t, Config{MaxEntries: 50}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d", j%20)
				_, _ = store.Set(key, "v")
				store.Get(key)
				store.Has(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Size(), 50)
}

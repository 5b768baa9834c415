package cache_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/dns-cache/internal/cache"
	"github.com/rohmanhakim/dns-cache/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryCache(t *testing.T) {
	c := cache.NewMemoryCache()
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ImplementsPort(t *testing.T) {
	var _ cache.Cache = cache.NewMemoryCache()
}

func TestMemoryCache_Find_EmptyCache(t *testing.T) {
	c := cache.NewMemoryCache()

	record, found := c.Find("a")
	assert.False(t, found)
	assert.Nil(t, record)
}

func TestMemoryCache_Find_NeverUpserted(t *testing.T) {
	c := cache.NewMemoryCache()
	require.Nil(t, c.Upsert("example.org", cache.NewRecord("93.184.216.34")))

	for _, key := range []string{"", "example.com", "EXAMPLE.ORG", "example.org."} {
		t.Run(fmt.Sprintf("key=%q", key), func(t *testing.T) {
			_, found := c.Find(key)
			assert.False(t, found)
		})
	}
}

func TestMemoryCache_UpsertAndFind(t *testing.T) {
	c := cache.NewMemoryCache()

	err := c.Upsert("123", cache.NewRecord("123:456"))
	require.Nil(t, err)

	record, found := c.Find("123")
	require.True(t, found)
	assert.Equal(t, "123:456", record.Info())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Upsert_Overwrite(t *testing.T) {
	c := cache.NewMemoryCache()

	require.Nil(t, c.Upsert("x", cache.NewRecord("v1")))
	require.Nil(t, c.Upsert("x", cache.NewRecord("v2")))

	record, found := c.Find("x")
	require.True(t, found)
	assert.Equal(t, "v2", record.Info())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_OldHandleSurvivesReplacement(t *testing.T) {
	c := cache.NewMemoryCache()
	require.Nil(t, c.Upsert("x", cache.NewRecord("v1")))

	before, found := c.Find("x")
	require.True(t, found)

	require.Nil(t, c.Upsert("x", cache.NewRecord("v2")))

	after, found := c.Find("x")
	require.True(t, found)

	assert.Equal(t, "v1", before.Info())
	assert.Equal(t, "v2", after.Info())
	assert.NotSame(t, before, after)
}

func TestMemoryCache_EqualPayloadsAreDistinctHandles(t *testing.T) {
	c := cache.NewMemoryCache()
	record := cache.NewRecord("same")

	require.Nil(t, c.Upsert("a", record))
	require.Nil(t, c.Upsert("b", record))

	a, _ := c.Find("a")
	b, _ := c.Find("b")
	assert.Equal(t, a.Info(), b.Info())
	assert.NotSame(t, a, b)
}

func TestMemoryCache_UpsertSameRecordTwicePublishesNewHandle(t *testing.T) {
	c := cache.NewMemoryCache()
	record := cache.NewRecord("v")

	require.Nil(t, c.Upsert("k", record))
	first, _ := c.Find("k")
	require.Nil(t, c.Upsert("k", record))
	second, _ := c.Find("k")

	assert.NotSame(t, first, second)
}

func TestMemoryCache_EmptyKeyAndValue(t *testing.T) {
	c := cache.NewMemoryCache()

	require.Nil(t, c.Upsert("", cache.NewRecord("empty-key-value")))
	require.Nil(t, c.Upsert("empty-value-key", cache.NewRecord("")))

	record, found := c.Find("")
	require.True(t, found)
	assert.Equal(t, "empty-key-value", record.Info())

	record, found = c.Find("empty-value-key")
	require.True(t, found)
	assert.Equal(t, "", record.Info())
}

func TestMemoryCache_Clear(t *testing.T) {
	c := cache.NewMemoryCache()
	require.Nil(t, c.Upsert("key1", cache.NewRecord("value1")))
	require.Nil(t, c.Upsert("key2", cache.NewRecord("value2")))
	held, _ := c.Find("key1")

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, found := c.Find("key1")
	assert.False(t, found)
	assert.Equal(t, "value1", held.Info())
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	c := cache.NewMemoryCache(cache.WithMaxEntries(2))
	require.Nil(t, c.Upsert("a", cache.NewRecord("A")))
	require.Nil(t, c.Upsert("b", cache.NewRecord("B")))

	err := c.Upsert("c", cache.NewRecord("C"))
	require.NotNil(t, err)
	assert.ErrorIs(t, err, cache.ErrAllocation)
	assert.Equal(t, failure.SeverityFatal, err.Severity())

	var cacheErr *cache.CacheError
	require.True(t, errors.As(err, &cacheErr))
	assert.Equal(t, cache.ErrCauseAllocation, cacheErr.Cause)
	assert.False(t, cacheErr.IsRetryable())

	// refused insert leaves the map untouched
	assert.Equal(t, 2, c.Len())
	_, found := c.Find("c")
	assert.False(t, found)
	record, found := c.Find("a")
	require.True(t, found)
	assert.Equal(t, "A", record.Info())

	// replacing an existing key is still allowed at capacity
	require.Nil(t, c.Upsert("a", cache.NewRecord("A2")))
	record, _ = c.Find("a")
	assert.Equal(t, "A2", record.Info())
}

func TestMemoryCache_Snapshot(t *testing.T) {
	c := cache.NewMemoryCache()
	require.Nil(t, c.Upsert("b.example", cache.NewRecord("2")))
	require.Nil(t, c.Upsert("a.example", cache.NewRecord("1")))
	require.Nil(t, c.Upsert("c.example", cache.NewRecord("3")))

	snapshot := c.Snapshot()

	// later writes are not observed by an existing snapshot
	require.Nil(t, c.Upsert("a.example", cache.NewRecord("changed")))
	require.Nil(t, c.Upsert("d.example", cache.NewRecord("4")))

	var keys, infos []string
	for key, record := range snapshot {
		keys = append(keys, key)
		infos = append(infos, record.Info())
	}

	assert.Equal(t, []string{"a.example", "b.example", "c.example"}, keys)
	assert.Equal(t, []string{"1", "2", "3"}, infos)
}

func TestMemoryCache_Snapshot_EarlyBreak(t *testing.T) {
	c := cache.NewMemoryCache()
	for i := 0; i < 5; i++ {
		require.Nil(t, c.Upsert(fmt.Sprintf("k%d", i), cache.NewRecord("v")))
	}

	seen := 0
	for range c.Snapshot() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestMemoryCache_TryFindAndTryUpsert_Uncontended(t *testing.T) {
	c := cache.NewMemoryCache(cache.WithLockTimeout(50*time.Millisecond))

	err := c.TryUpsert("k", cache.NewRecord("v"), c.LockTimeout())
	require.Nil(t, err)

	record, found, err := c.TryFind("k", c.LockTimeout())
	require.Nil(t, err)
	require.True(t, found)
	assert.Equal(t, "v", record.Info())

	_, found, err = c.TryFind("missing", 0)
	require.Nil(t, err)
	assert.False(t, found)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := cache.NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Upsert("key", cache.NewRecord("value"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if record, found := c.Find("key"); found {
					assert.Equal(t, "value", record.Info())
				}
			}
		}()
	}
	wg.Wait()

	record, found := c.Find("key")
	require.True(t, found)
	assert.Equal(t, "value", record.Info())
}

// TestMemoryCache_ConcurrentDisjointKeys runs interleaved find/upsert on
// disjoint keys and checks each key ends with its last written value.
// Run with -race.
func TestMemoryCache_ConcurrentDisjointKeys(t *testing.T) {
	const workers = 16
	const ops = 500

	c := cache.NewMemoryCache()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("worker-%d.example", w)
			for i := 0; i < ops; i++ {
				want := fmt.Sprintf("%d:%d", w, i)
				if err := c.Upsert(key, cache.NewRecord(want)); err != nil {
					t.Errorf("upsert %s: %v", key, err)
					return
				}
				record, found := c.Find(key)
				if !found || record.Info() != want {
					t.Errorf("find %s: got %v (found=%t), want %s", key, record, found, want)
					return
				}
				for range c.Snapshot() {
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers, c.Len())
	for w := 0; w < workers; w++ {
		record, found := c.Find(fmt.Sprintf("worker-%d.example", w))
		require.True(t, found)
		assert.Equal(t, fmt.Sprintf("%d:%d", w, ops-1), record.Info())
	}
}

func TestCacheError_Is(t *testing.T) {
	timeout := &cache.CacheError{Cause: cache.ErrCauseLockTimeout, Retryable: true, Message: "x"}

	assert.ErrorIs(t, timeout, cache.ErrLockTimeout)
	assert.NotErrorIs(t, timeout, cache.ErrAllocation)
	assert.Equal(t, failure.SeverityRecoverable, timeout.Severity())
	assert.Equal(t, "cache error: lock acquisition timed out, x", timeout.Error())
	assert.Equal(t, "cache error: storage limit reached", cache.ErrAllocation.Error())
}

package cache

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/dns-cache/pkg/failure"
)

// MemoryCache is an in-memory implementation of the Cache interface.
// It uses a map for storage and provides thread-safe operations via RWMutex.
//
// The mutex guards the key set and the handle each key points to. Records
// themselves never change once published, so handles can be read without
// holding the lock.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Record

	// maxEntries <= 0 means unbounded.
	maxEntries  int
	lockTimeout time.Duration
}

type Option func(*MemoryCache)

// WithMaxEntries bounds the number of distinct keys. Upserting a new key
// into a full cache fails with ErrCauseAllocation.
func WithMaxEntries(n int) Option {
	return func(c *MemoryCache) {
		c.maxEntries = n
	}
}

// WithLockTimeout sets the default budget returned by LockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(c *MemoryCache) {
		c.lockTimeout = d
	}
}

// NewMemoryCache creates a new in-memory cache instance.
// The cache is initialized empty and ready for use.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Find retrieves the handle stored under key.
// It holds the read lock for the lookup only.
func (c *MemoryCache) Find(key string) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.findLocked(key)
}

// Upsert stores a copy of record under key.
// It holds the write lock for the mutation only.
func (c *MemoryCache) Upsert(key string, record Record) failure.ClassifiedError {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.upsertLocked(key, record)
}

// TryFind is Find with a bound on how long it waits for the read lock.
// A non-positive timeout waits indefinitely.
func (c *MemoryCache) TryFind(key string, timeout time.Duration) (*Record, bool, failure.ClassifiedError) {
	if timeout <= 0 {
		record, found := c.Find(key)
		return record, found, nil
	}

	if !acquireWithin(c.mu.TryRLock, timeout) {
		return nil, false, lockTimeoutError("read", key, timeout)
	}
	defer c.mu.RUnlock()

	record, found := c.findLocked(key)
	return record, found, nil
}

// TryUpsert is Upsert with a bound on how long it waits for the write lock.
// On timeout the cache is left untouched and the error is retryable.
func (c *MemoryCache) TryUpsert(key string, record Record, timeout time.Duration) failure.ClassifiedError {
	if timeout <= 0 {
		return c.Upsert(key, record)
	}

	if !acquireWithin(c.mu.TryLock, timeout) {
		return lockTimeoutError("write", key, timeout)
	}
	defer c.mu.Unlock()

	return c.upsertLocked(key, record)
}

// LockTimeout returns the default lock budget configured with WithLockTimeout.
func (c *MemoryCache) LockTimeout() time.Duration {
	return c.lockTimeout
}

// Len returns the number of entries in the cache.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Clear removes all entries from the cache.
// Handles already handed out stay valid.
// This method is primarily useful for testing.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Record)
}

// Snapshot copies every (key, handle) pair under the read lock and returns
// a sequence over the copy, ordered by key. Upserts made after Snapshot
// returns are never observed by the sequence.
func (c *MemoryCache) Snapshot() iter.Seq2[string, *Record] {
	c.mu.RLock()
	entries := make([]entry, 0, len(c.entries))
	for key, record := range c.entries {
		entries = append(entries, entry{key: key, record: record})
	}
	c.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		return strings.Compare(a.key, b.key)
	})

	return func(yield func(string, *Record) bool) {
		for _, e := range entries {
			if !yield(e.key, e.record) {
				return
			}
		}
	}
}

type entry struct {
	key    string
	record *Record
}

// findLocked requires c.mu held in read or write mode.
func (c *MemoryCache) findLocked(key string) (*Record, bool) {
	record, found := c.entries[key]
	return record, found
}

// upsertLocked requires c.mu held in write mode.
// The capacity check runs before the map is touched, so a refused insert
// leaves no trace.
func (c *MemoryCache) upsertLocked(key string, record Record) failure.ClassifiedError {
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		return &CacheError{
			Message:   fmt.Sprintf("cannot insert %q: %d of %d entries in use", key, len(c.entries), c.maxEntries),
			Retryable: false,
			Cause:     ErrCauseAllocation,
		}
	}

	handle := record
	c.entries[key] = &handle
	return nil
}

func lockTimeoutError(mode string, key string, timeout time.Duration) *CacheError {
	return &CacheError{
		Message:   fmt.Sprintf("%s lock for %q not acquired within %v", mode, key, timeout),
		Retryable: true,
		Cause:     ErrCauseLockTimeout,
	}
}

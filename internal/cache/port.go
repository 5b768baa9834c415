// Package cache holds the concurrency-safe domain cache: an RWMutex-guarded
// map from domain name to immutable Record handles.
package cache

import "github.com/rohmanhakim/dns-cache/pkg/failure"

// Cache defines the port interface for domain record caching.
// This interface follows the port-adapter pattern, allowing different
// cache implementations to be swapped without changing the callers.
type Cache interface {
	// Find returns the current handle for key, or nil and false when the key
	// was never stored. An absent key is not an error.
	// Find never blocks other concurrent Find calls.
	Find(key string) (*Record, bool)

	// Upsert stores record under key, inserting a new entry or replacing the
	// handle of an existing one. Handles returned earlier by Find keep
	// reporting the value they were published with.
	Upsert(key string, record Record) failure.ClassifiedError
}

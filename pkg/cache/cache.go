// Package cache provides generic, thread-safe caches with built-in statistics
// and optional Prometheus export.
//
//   - NewSimple: unbounded, no eviction
//   - NewLRU: bounded, least recently used entry evicted first
//
// The read cache keeps remote entity snapshots in an LRU so long editing
// sessions do not grow without bound; an evicted entity is simply fetched
// again on its next sync.
package cache

import (
	"github.com/c360/graphsync/errors"
)

// Cache is a keyed store of V values.
type Cache[V any] interface {
	// Get returns the value and true if present.
	Get(key string) (V, bool)

	// Set stores value. Returns true if a new entry was created.
	Set(key string, value V) (bool, error)

	// Compute atomically replaces the entry with fn(old, present). When fn
	// returns keep=false the cache is left unchanged.
	Compute(key string, fn func(old V, present bool) (value V, keep bool)) (V, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	Clear() error
	Size() int
	Keys() []string
	Stats() *Statistics
	Close() error
}

// EvictCallback is called with every entry dropped to make room.
type EvictCallback[V any] func(key string, value V)

// NewSimple returns an unbounded cache.
func NewSimple[V any](opts ...Option[V]) (Cache[V], error) {
	return newLRUCache[V](0, applyOptions(opts...))
}

// NewLRU returns a cache holding at most size entries.
func NewLRU[V any](size int, opts ...Option[V]) (Cache[V], error) {
	if size <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "size must be positive")
	}
	return newLRUCache[V](size, applyOptions(opts...))
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

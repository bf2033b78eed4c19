package localstore

import (
	"slices"
	"sync"
)

// ComputedView caches the result of a derivation until one of its version
// sources moves. Nothing is recomputed on write; the next Get after a write
// pays for it.
type ComputedView[T any] struct {
	compute  func() T
	versions []func() uint64

	mu    sync.Mutex
	seen  []uint64
	valid bool
	value T
}

// NewComputedView derives a value with compute, cached against versions.
func NewComputedView[T any](compute func() T, versions ...func() uint64) *ComputedView[T] {
	return &ComputedView[T]{compute: compute, versions: versions}
}

// Computed derives a value from the store's current snapshot. Additional
// version sources, such as a remote read cache, invalidate it too.
func Computed[T any](s *Store, fn func(*Snapshot) T, extra ...func() uint64) *ComputedView[T] {
	versions := append([]func() uint64{s.Version}, extra...)
	return NewComputedView(func() T { return fn(s.Snapshot()) }, versions...)
}

// Get returns the cached value, recomputing it if any version changed.
func (v *ComputedView[T]) Get() T {
	current := make([]uint64, len(v.versions))
	for i, fn := range v.versions {
		current[i] = fn()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.valid && slices.Equal(current, v.seen) {
		return v.value
	}
	v.value = v.compute()
	v.seen = current
	v.valid = true
	return v.value
}

// Invalidate forces the next Get to recompute.
func (v *ComputedView[T]) Invalidate() {
	v.mu.Lock()
	v.valid = false
	v.mu.Unlock()
}

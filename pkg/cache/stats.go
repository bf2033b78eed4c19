package cache

import (
	"sync/atomic"
)

// Statistics counts cache operations. It is always collected.
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
	size      atomic.Int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) hit()             { s.hits.Add(1) }
func (s *Statistics) miss()            { s.misses.Add(1) }
func (s *Statistics) set()             { s.sets.Add(1) }
func (s *Statistics) delete()          { s.deletes.Add(1) }
func (s *Statistics) eviction()        { s.evictions.Add(1) }
func (s *Statistics) updateSize(n int) { s.size.Store(int64(n)) }

// Hits returns the number of cache hits.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the number of cache misses.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the number of stored values.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Deletes returns the number of explicit deletes.
func (s *Statistics) Deletes() int64 { return s.deletes.Load() }

// Evictions returns the number of entries dropped to make room.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// CurrentSize returns the last observed entry count.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s *Statistics) HitRatio() float64 {
	h, m := s.Hits(), s.Misses()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

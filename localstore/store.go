// Package localstore holds the user's unpublished write intent.
//
// Every mutation becomes a SET or DELETE entry keyed by the fact's composite
// key, replacing whatever entry the key held before. Deletes are tombstones:
// the entry stays, flagged IsDeleted with a placeholder value, so the delete
// still shadows a stale remote snapshot during merge.
//
// The store is single-writer, multiple-reader. Each write installs a new
// immutable Snapshot, so readers never block on writers or on the network.
// Subscribers are called synchronously after every write.
package localstore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/pkg/timestamp"
)

// Subscriber receives each snapshot installed by a write.
type Subscriber func(*Snapshot)

// Store is the local op store. Construct one per process with New and pass
// it to every consumer.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]

	subsMu  sync.RWMutex
	subs    map[int]Subscriber
	nextSub int

	persist *persister
	logger  *slog.Logger
	metrics *metric.Metrics
	now     func() string
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		subs:   make(map[int]Subscriber),
		logger: slog.Default(),
		now:    timestamp.Now,
	}
	s.current.Store(emptySnapshot())

	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger != nil {
		s.logger = cfg.logger
	}
	s.logger = s.logger.With("component", "localstore")
	if cfg.now != nil {
		s.now = cfg.now
	}
	s.metrics = cfg.metrics
	if cfg.opLog != nil {
		s.persist = newPersister(cfg.opLog, cfg.flushInterval, s.logger)
	}
	return s
}

// Snapshot returns the current point-in-time view.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Version returns the current snapshot version.
func (s *Store) Version() uint64 {
	return s.current.Load().version
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) notify(snap *Snapshot) {
	s.subsMu.RLock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// apply runs fn against a builder and installs the result if anything
// changed.
func (s *Store) apply(fn func(*builder)) *Snapshot {
	s.mu.Lock()
	prev := s.current.Load()
	b := newBuilder(prev)
	fn(b)
	if len(b.changed) == 0 {
		s.mu.Unlock()
		return prev
	}
	next := b.build()
	s.current.Store(next)
	if s.persist != nil {
		s.persist.enqueue(next, b.changed)
	}
	s.mu.Unlock()

	s.observe(next)
	s.notify(next)
	return next
}

func (s *Store) observe(snap *Snapshot) {
	if s.metrics == nil {
		return
	}
	triples, relations := snap.Len()
	s.metrics.StoreEntries.WithLabelValues("triple").Set(float64(triples))
	s.metrics.StoreEntries.WithLabelValues("relation").Set(float64(relations))
	pt, pr := snap.Pending()
	s.metrics.StorePending.Set(float64(len(pt) + len(pr)))
}

// Upsert records a SET for t in space, replacing any entry with the same key.
func (s *Store) Upsert(t graph.Triple, space string) TripleOp {
	return s.UpsertMany([]graph.Triple{t}, space)[0]
}

// UpsertMany records a SET for each triple. Later triples win over earlier
// ones with the same key.
func (s *Store) UpsertMany(ts []graph.Triple, space string) []TripleOp {
	return s.writeTriples(ts, space, OpSet)
}

// Remove records a tombstone for t's key in space.
func (s *Store) Remove(t graph.Triple, space string) TripleOp {
	return s.RemoveMany([]graph.Triple{t}, space)[0]
}

// RemoveMany records a tombstone for each triple's key.
func (s *Store) RemoveMany(ts []graph.Triple, space string) []TripleOp {
	return s.writeTriples(ts, space, OpDelete)
}

func (s *Store) writeTriples(ts []graph.Triple, space string, kind OpKind) []TripleOp {
	out := make([]TripleOp, len(ts))
	if len(ts) == 0 {
		return out
	}
	ts0 := s.now()
	s.apply(func(b *builder) {
		for i, t := range ts {
			out[i] = b.putTriple(newTripleOp(t, space, kind, ts0))
		}
	})
	return out
}

// UpsertRelation records a SET for r in space.
func (s *Store) UpsertRelation(r graph.Relation, space string) RelationOp {
	return s.UpsertRelations([]graph.Relation{r}, space)[0]
}

// UpsertRelations records a SET for each relation.
func (s *Store) UpsertRelations(rs []graph.Relation, space string) []RelationOp {
	return s.writeRelations(rs, space, OpSet)
}

// RemoveRelation records a tombstone for r's key in space.
func (s *Store) RemoveRelation(r graph.Relation, space string) RelationOp {
	return s.RemoveRelations([]graph.Relation{r}, space)[0]
}

// RemoveRelations records a tombstone for each relation's key.
func (s *Store) RemoveRelations(rs []graph.Relation, space string) []RelationOp {
	return s.writeRelations(rs, space, OpDelete)
}

func (s *Store) writeRelations(rs []graph.Relation, space string, kind OpKind) []RelationOp {
	out := make([]RelationOp, len(rs))
	if len(rs) == 0 {
		return out
	}
	ts0 := s.now()
	s.apply(func(b *builder) {
		for i, r := range rs {
			out[i] = b.putRelation(newRelationOp(r, space, kind, ts0))
		}
	})
	return out
}

// Restore replaces the entire log with the given entries. Versions are kept
// when present; entries without one are numbered after the highest kept
// version in the order given.
func (s *Store) Restore(triples []TripleOp, relations []RelationOp) {
	next := restoreSnapshot(triples, relations)

	s.mu.Lock()
	s.current.Store(next)
	if s.persist != nil {
		s.persist.enqueueReplace(next)
	}
	s.mu.Unlock()

	s.observe(next)
	s.notify(next)
}

func restoreSnapshot(triples []TripleOp, relations []RelationOp) *Snapshot {
	next := emptySnapshot()
	var top uint64
	for _, op := range triples {
		top = max(top, op.Version)
	}
	for _, op := range relations {
		top = max(top, op.Version)
	}

	for _, op := range triples {
		op.CompositeKey = op.Triple.Key()
		if op.Version == 0 {
			top++
			op.Version = top
		}
		next.triples[op.CompositeKey] = op
	}
	for _, op := range relations {
		op.CompositeKey = op.Relation.Key()
		if op.Version == 0 {
			top++
			op.Version = top
		}
		next.relations[op.CompositeKey] = op
	}
	next.version = top
	return next
}

// MarkPublished flags entries as published. An entry is only flagged when it
// still holds the given version; a newer local write stays pending. It
// returns the number of entries flagged.
func (s *Store) MarkPublished(keys ...VersionedKey) int {
	n := 0
	s.apply(func(b *builder) {
		for _, vk := range keys {
			if op, ok := b.prev.triples[vk.Key]; ok && op.Version == vk.Version && !op.HasBeenPublished {
				op.HasBeenPublished = true
				b.replaceTriple(op)
				n++
				continue
			}
			if op, ok := b.prev.relations[vk.Key]; ok && op.Version == vk.Version && !op.HasBeenPublished {
				op.HasBeenPublished = true
				b.replaceRelation(op)
				n++
			}
		}
	})
	return n
}

// Prune removes every entry for which drop returns true. The publish layer
// calls this once the remote is known to reflect published entries.
func (s *Store) Prune(drop func(Meta) bool) int {
	n := 0
	s.apply(func(b *builder) {
		for key, op := range b.prev.triples {
			if drop(op.Meta) {
				b.dropTriple(key)
				n++
			}
		}
		for key, op := range b.prev.relations {
			if drop(op.Meta) {
				b.dropRelation(key)
				n++
			}
		}
	})
	return n
}

// Load restores the store from its persister. Without a persister it is a
// no-op.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	triples, relations, err := s.persist.load(ctx)
	if err != nil {
		return err
	}

	next := restoreSnapshot(triples, relations)
	s.mu.Lock()
	s.current.Store(next)
	s.mu.Unlock()

	s.logger.Info("Local ops restored", "triples", len(triples), "relations", len(relations))
	s.observe(next)
	s.notify(next)
	return nil
}

// Flush writes queued changes to the persister.
func (s *Store) Flush(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	return s.persist.flush(ctx)
}

// Close flushes and stops the persister.
func (s *Store) Close(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	return s.persist.close(ctx)
}

package localstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/storage"
)

func fixedClock() func() string {
	return func() string { return "2024-01-01T00:00:00.000Z" }
}

func triple(entity, attr, value string) graph.Triple {
	return graph.Triple{EntityID: entity, AttributeID: attr, Value: graph.Text(value)}
}

func TestUpsert_ReplacesByKey(t *testing.T) {
	s := New(WithClock(fixedClock()))

	s.Upsert(triple("entity1", "attr1", "v1"), "space1")
	s.Upsert(triple("entity1", "attr1", "v2"), "space1")

	snap := s.Snapshot()
	ops := snap.TriplesFor("entity1")
	require.Len(t, ops, 1)
	assert.Equal(t, "v2", ops[0].Value.Value)
	assert.Equal(t, "space1", ops[0].Space)
	assert.Equal(t, "space1:entity1:attr1", ops[0].CompositeKey)
	assert.Equal(t, OpSet, ops[0].Op)
	assert.False(t, ops[0].IsDeleted)
}

func TestUpsert_Idempotent(t *testing.T) {
	once := New(WithClock(fixedClock()))
	twice := New(WithClock(fixedClock()))

	tr := triple("e", "a", "same")
	once.Upsert(tr, "s")
	twice.Upsert(tr, "s")
	twice.Upsert(tr, "s")

	a := once.Snapshot().Triples()
	b := twice.Snapshot().Triples()
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Triple, b[0].Triple)
	assert.Equal(t, a[0].Op, b[0].Op)
}

func TestKeyUniqueness_MixedWrites(t *testing.T) {
	s := New()
	for i := 0; i < 20; i++ {
		tr := triple(fmt.Sprintf("e%d", i%3), fmt.Sprintf("a%d", i%2), fmt.Sprint(i))
		if i%5 == 0 {
			s.Remove(tr, "s")
		} else {
			s.Upsert(tr, "s")
		}
	}

	seen := make(map[string]bool)
	for _, op := range s.Snapshot().Triples() {
		assert.False(t, seen[op.CompositeKey], "duplicate key %s", op.CompositeKey)
		seen[op.CompositeKey] = true
	}
	assert.Len(t, seen, 6)
}

func TestRemove_WritesTombstone(t *testing.T) {
	s := New()
	s.Upsert(triple("e", "a", "secret"), "s")
	op := s.Remove(triple("e", "a", "secret"), "s")

	assert.True(t, op.IsDeleted)
	assert.Equal(t, OpDelete, op.Op)
	assert.Equal(t, graph.Placeholder(), op.Value)

	stored, ok := s.Snapshot().Triple("s:e:a")
	require.True(t, ok)
	assert.True(t, stored.IsDeleted)
	assert.Empty(t, stored.Value.Value)
}

func TestRemove_WithoutPriorValue(t *testing.T) {
	s := New()
	s.Remove(triple("ghost", "a", ""), "s")

	ops := s.Snapshot().Triples()
	require.Len(t, ops, 1)
	assert.True(t, ops[0].IsDeleted)
}

func TestRelations(t *testing.T) {
	s := New()
	r := graph.Relation{
		ID: "r1", Index: "a",
		TypeOf:     graph.EntityRef{ID: "types"},
		FromEntity: graph.EntityRef{ID: "e1"},
		ToEntity:   graph.ToEntityRef{ID: "T"},
	}
	s.UpsertRelation(r, "s")
	assert.Len(t, s.Snapshot().RelationsFrom("e1"), 1)

	s.RemoveRelation(r, "s")
	rels := s.Snapshot().RelationsFrom("e1")
	require.Len(t, rels, 1)
	assert.True(t, rels[0].IsDeleted)
	assert.Equal(t, []string{"e1"}, s.Snapshot().EntityIDs())
}

func TestSnapshot_IsImmutable(t *testing.T) {
	s := New()
	s.Upsert(triple("e", "a", "v1"), "s")
	before := s.Snapshot()

	s.Upsert(triple("e", "a", "v2"), "s")
	s.Upsert(triple("e", "b", "v3"), "s")

	assert.Len(t, before.Triples(), 1)
	assert.Equal(t, "v1", before.Triples()[0].Value.Value)
	assert.Less(t, before.Version(), s.Version())
}

func TestSubscribe(t *testing.T) {
	s := New()
	var calls atomic.Int32
	var lastVersion atomic.Uint64
	cancel := s.Subscribe(func(snap *Snapshot) {
		calls.Add(1)
		lastVersion.Store(snap.Version())
	})

	s.Upsert(triple("e", "a", "v"), "s")
	s.UpsertMany([]graph.Triple{triple("e", "b", "1"), triple("e", "c", "2")}, "s")
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, s.Version(), lastVersion.Load())

	cancel()
	cancel()
	s.Upsert(triple("e", "a", "w"), "s")
	assert.EqualValues(t, 2, calls.Load())
}

func TestMarkPublished_VersionGuard(t *testing.T) {
	s := New()
	first := s.Upsert(triple("e", "a", "v1"), "s")
	second := s.Upsert(triple("e", "a", "v2"), "s")

	n := s.MarkPublished(VersionedKey{Key: first.CompositeKey, Version: first.Version})
	assert.Equal(t, 0, n)

	n = s.MarkPublished(VersionedKey{Key: second.CompositeKey, Version: second.Version})
	assert.Equal(t, 1, n)

	pt, pr := s.Snapshot().Pending()
	assert.Empty(t, pt)
	assert.Empty(t, pr)
}

func TestPrune(t *testing.T) {
	s := New()
	a := s.Upsert(triple("e", "a", "1"), "s")
	s.Upsert(triple("e", "b", "2"), "s")
	s.MarkPublished(VersionedKey{Key: a.CompositeKey, Version: a.Version})

	n := s.Prune(func(m Meta) bool { return m.HasBeenPublished })
	assert.Equal(t, 1, n)
	require.Len(t, s.Snapshot().Triples(), 1)
	assert.Equal(t, "b", s.Snapshot().Triples()[0].AttributeID)

	version := s.Version()
	assert.Equal(t, 0, s.Prune(func(Meta) bool { return false }))
	assert.Equal(t, version, s.Version())
}

func TestRestore(t *testing.T) {
	s := New()
	s.Upsert(triple("old", "a", "x"), "s")

	tomb := TripleOp{Triple: graph.Triple{Space: "s", EntityID: "e", AttributeID: "a", Value: graph.Placeholder()},
		Meta: Meta{Op: OpDelete, IsDeleted: true, Version: 7}}
	set := TripleOp{Triple: graph.Triple{Space: "s", EntityID: "e", AttributeID: "b", Value: graph.Text("v")},
		Meta: Meta{Op: OpSet}}
	s.Restore([]TripleOp{tomb, set}, nil)

	snap := s.Snapshot()
	assert.Len(t, snap.Triples(), 2)
	_, ok := snap.Triple("s:old:a")
	assert.False(t, ok)

	got, ok := snap.Triple("s:e:a")
	require.True(t, ok)
	assert.True(t, got.IsDeleted)
	assert.EqualValues(t, 7, got.Version)
	assert.EqualValues(t, 8, snap.Version())
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	log := storage.NewMemory()

	s := New(WithPersister(log, time.Hour))
	s.Upsert(triple("e", "a", "v1"), "s")
	s.Remove(triple("e", "b", ""), "s")
	s.UpsertRelation(graph.Relation{ID: "r", Index: "a", TypeOf: graph.EntityRef{ID: "t"},
		FromEntity: graph.EntityRef{ID: "e"}, ToEntity: graph.ToEntityRef{ID: "x"}}, "s")
	require.NoError(t, s.Close(ctx))

	recs, err := log.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	restored := New(WithPersister(log, time.Hour))
	require.NoError(t, restored.Load(ctx))
	defer restored.Close(ctx)

	assert.Equal(t, s.Snapshot().Triples(), restored.Snapshot().Triples())
	assert.Equal(t, s.Snapshot().Relations(), restored.Snapshot().Relations())
	assert.Equal(t, s.Version(), restored.Version())
}

func TestPersistence_PruneDeletesRecords(t *testing.T) {
	ctx := context.Background()
	log := storage.NewMemory()

	s := New(WithPersister(log, time.Hour))
	defer s.Close(ctx)
	op := s.Upsert(triple("e", "a", "v"), "s")
	require.NoError(t, s.Flush(ctx))

	s.MarkPublished(VersionedKey{Key: op.CompositeKey, Version: op.Version})
	s.Prune(func(m Meta) bool { return m.HasBeenPublished })
	require.NoError(t, s.Flush(ctx))

	recs, err := log.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	s := New(WithMetrics(reg.Metrics))
	s.Upsert(triple("e", "a", "v"), "s")
	s.Upsert(triple("e", "b", "v"), "s")

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Metrics.StoreEntries.WithLabelValues("triple")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Metrics.StorePending))
}

func TestComputedView(t *testing.T) {
	s := New()
	var computations atomic.Int32
	view := Computed(s, func(snap *Snapshot) int {
		computations.Add(1)
		return len(snap.Triples())
	})

	assert.Equal(t, 0, view.Get())
	assert.Equal(t, 0, view.Get())
	assert.EqualValues(t, 1, computations.Load())

	s.Upsert(triple("e", "a", "v"), "s")
	assert.Equal(t, 1, view.Get())
	assert.EqualValues(t, 2, computations.Load())

	view.Invalidate()
	view.Get()
	assert.EqualValues(t, 3, computations.Load())

	var extra atomic.Uint64
	withExtra := Computed(s, func(snap *Snapshot) uint64 { return extra.Load() }, extra.Load)
	assert.EqualValues(t, 0, withExtra.Get())
	extra.Store(5)
	assert.EqualValues(t, 5, withExtra.Get())
}

func TestComputedView_PublishAndPrune(t *testing.T) {
	s := New()
	pending := Computed(s, func(snap *Snapshot) int {
		triples, relations := snap.Pending()
		return len(triples) + len(relations)
	})
	published := Computed(s, func(snap *Snapshot) int { return len(snap.Triples()) })

	op := s.Upsert(triple("e", "a", "v"), "s")
	assert.Equal(t, 1, pending.Get())
	assert.Equal(t, 1, published.Get())

	before := s.Version()
	require.Equal(t, 1, s.MarkPublished(VersionedKey{Key: op.CompositeKey, Version: op.Version}))
	assert.Greater(t, s.Version(), before)
	assert.Equal(t, 0, pending.Get())

	got, ok := s.Snapshot().Triple(op.CompositeKey)
	require.True(t, ok)
	assert.Equal(t, op.Version, got.Version, "publishing keeps the entry version")

	before = s.Version()
	require.Equal(t, 1, s.Prune(func(m Meta) bool { return m.HasBeenPublished }))
	assert.Greater(t, s.Version(), before)
	assert.Equal(t, 0, published.Get())
}

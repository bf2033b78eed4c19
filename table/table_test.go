package table

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/readcache"
	"github.com/c360/graphsync/remote"
	"github.com/c360/graphsync/remote/memory"
	"github.com/c360/graphsync/vocabulary"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want remote.Filter
	}{
		{"empty", "", remote.Filter{}},
		{"object", `{"space":"s","filters":[{"columnId":"Types","value":"T"}]}`,
			remote.Filter{Space: "s", Clauses: []remote.Clause{{ColumnID: "Types", Value: "T"}}}},
		{"bare list", `[{"columnId":"a","value":"1","valueType":"NUMBER"}]`,
			remote.Filter{Clauses: []remote.Clause{{ColumnID: "a", Value: "1", ValueType: graph.ValueNumber}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := metric.NewMetricsRegistry()
			assert.Equal(t, tt.want, ParseFilter(tt.raw, nil, reg.Metrics))
			assert.Zero(t, testutil.ToFloat64(reg.Metrics.FilterFailures))
		})
	}
}

func TestParseFilter_MalformedDegradesToEmpty(t *testing.T) {
	for _, raw := range []string{
		`{"filters":`,
		`[{"columnId":"","value":"x"}]`,
		`[{"columnId":"a","value":"x","valueType":"COLOR"}]`,
		`"just a string"`,
	} {
		reg := metric.NewMetricsRegistry()
		f := ParseFilter(raw, nil, reg.Metrics)
		assert.True(t, f.IsEmpty(), raw)
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.Metrics.FilterFailures), raw)
	}
}

func nameTriple(id, name string) graph.Triple {
	return graph.Triple{Space: "s", EntityID: id, AttributeID: vocabulary.Name, Value: graph.Text(name)}
}

func typeRel(id, from, typeID string) graph.Relation {
	return graph.Relation{Space: "s", ID: id, Index: "a",
		TypeOf:     graph.EntityRef{ID: vocabulary.Types},
		FromEntity: graph.EntityRef{ID: from},
		ToEntity:   graph.ToEntityRef{ID: typeID}}
}

func ids(es []graph.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

type fixture struct {
	remote *memory.Remote
	store  *localstore.Store
	cache  *readcache.Cache
	deps   Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := readcache.New()
	require.NoError(t, err)
	f := &fixture{remote: memory.New(), store: localstore.New(), cache: c}
	f.deps = Dependencies{Remote: f.remote, Store: f.store, Cache: f.cache, Metrics: metric.NewMetricsRegistry().Metrics}
	f.remote.Seed(
		[]graph.Triple{nameTriple("e1", "Alpha"), nameTriple("e2", "Beta"), nameTriple("e5", "Epsilon")},
		[]graph.Relation{typeRel("t1", "e1", "T"), typeRel("t2", "e2", "T"), typeRel("t5", "e5", "U")},
	)
	return f
}

var byType = Query{Filter: remote.Filter{Clauses: []remote.Clause{{ColumnID: vocabulary.Types, Value: "T"}}}}

func TestMergeEntities_RemoteOnly(t *testing.T) {
	f := newFixture(t)
	got, err := MergeEntities(context.Background(), byType, f.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids(got))
	assert.Equal(t, "Alpha", *got[0].Name)
}

func TestMergeEntities_LocalEditsApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Renamed locally.
	f.store.Upsert(graph.Triple{EntityID: "e1", AttributeID: vocabulary.Name, Value: graph.Text("Alpha 2")}, "s")
	// Untyped locally, so it no longer matches.
	f.store.RemoveRelation(typeRel("t2", "e2", "T"), "s")
	// Created locally.
	f.store.Upsert(graph.Triple{EntityID: "e3", AttributeID: vocabulary.Name, Value: graph.Text("Gamma")}, "s")
	f.store.UpsertRelation(typeRel("t3", "e3", "T"), "s")
	// Local but not matching.
	f.store.Upsert(graph.Triple{EntityID: "e4", AttributeID: vocabulary.Name, Value: graph.Text("Delta")}, "s")
	// Remote entity of another type retyped locally; its remote name is fetched.
	f.store.UpsertRelation(typeRel("t5b", "e5", "T"), "s")

	got, err := MergeEntities(ctx, byType, f.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e3", "e5"}, ids(got))
	assert.Equal(t, "Alpha 2", *got[0].Name)
	assert.Equal(t, "Gamma", *got[1].Name)
	assert.Equal(t, "Epsilon", *got[2].Name)
	assert.ElementsMatch(t, []string{"U", "T"}, got[2].TypeIDs())
}

func TestMergeEntities_UsesCacheBeforeFetching(t *testing.T) {
	f := newFixture(t)
	f.cache.PutEntity("e5", graph.Ptr("Cached"), []graph.Triple{nameTriple("e5", "Cached")}, nil, 0)
	f.remote.FailOn("e5", stderrors.New("should not be fetched"))
	f.store.UpsertRelation(typeRel("t5b", "e5", "T"), "s")

	got, err := MergeEntities(context.Background(), byType, f.deps)
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2", "e5"}, ids(got))
	assert.Equal(t, "Cached", *got[2].Name)
}

func TestMergeEntities_FetchFailureFallsBackToLocal(t *testing.T) {
	f := newFixture(t)
	f.remote.FailOn("e5", stderrors.New("unreachable"))
	f.store.UpsertRelation(typeRel("t5b", "e5", "T"), "s")

	got, err := MergeEntities(context.Background(), byType, f.deps)
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2", "e5"}, ids(got))
	assert.Nil(t, got[2].Name)
}

func TestMergeEntities_SkipsCachedDeletes(t *testing.T) {
	f := newFixture(t)
	op := f.store.UpsertRelation(typeRel("t9", "gone", "T"), "s")
	f.store.MarkPublished(localstore.VersionedKey{Key: op.CompositeKey, Version: op.Version})
	f.cache.MarkDeleted("gone", 0)

	got, err := MergeEntities(context.Background(), byType, f.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids(got))
}

func TestMergeEntities_RecreatedAfterRemoteDelete(t *testing.T) {
	f := newFixture(t)
	f.cache.MarkDeleted("back", 0)
	f.store.UpsertRelation(typeRel("t10", "back", "T"), "s")
	f.store.Upsert(nameTriple("back", "Back"), "s")

	got, err := MergeEntities(context.Background(), byType, f.deps)
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2", "back"}, ids(got))
	require.NotNil(t, got[2].Name)
	assert.Equal(t, "Back", *got[2].Name)
}

func TestMergeEntities_RemoteError(t *testing.T) {
	f := newFixture(t)
	f.remote.FailOn("", stderrors.New("index offline"))
	_, err := MergeEntities(context.Background(), byType, f.deps)
	require.Error(t, err)
}

func TestMergeEntities_NoRemote(t *testing.T) {
	store := localstore.New()
	store.UpsertRelation(typeRel("t", "x", "T"), "s")
	got, err := MergeEntities(context.Background(), byType, Dependencies{Store: store})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids(got))

	_, err = MergeEntities(context.Background(), byType, Dependencies{})
	require.Error(t, err)
}

func TestMergeEntities_Paging(t *testing.T) {
	f := newFixture(t)
	q := byType
	q.Page = remote.Page{Offset: 1, Limit: 1}
	got, err := MergeEntities(context.Background(), q, f.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, ids(got))
}

func TestMergeEntities_LocalOnlyOnFirstPage(t *testing.T) {
	f := newFixture(t)
	f.store.UpsertRelation(typeRel("t11", "draft", "T"), "s")

	q := byType
	q.Page = remote.Page{Offset: 0, Limit: 1}
	first, err := MergeEntities(context.Background(), q, f.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "draft"}, ids(first))

	q.Page = remote.Page{Offset: 1, Limit: 1}
	second, err := MergeEntities(context.Background(), q, f.deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, ids(second))
}

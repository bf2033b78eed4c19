package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/remote"
	"github.com/c360/graphsync/remote/memory"
	"github.com/c360/graphsync/syncworker"
	"github.com/c360/graphsync/table"
	"github.com/c360/graphsync/vocabulary"
)

func newClient(t *testing.T) (*Client, *memory.Remote) {
	t.Helper()
	r := memory.New()
	n := 0
	c, err := New(Dependencies{
		Remote:   r,
		Space:    "s",
		Registry: metric.NewMetricsRegistry(),
		NewID: func() string {
			n++
			return "rel-" + string(rune('0'+n))
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, r
}

func nameOf(id, name string) graph.Triple {
	return graph.Triple{Space: "s", EntityID: id, AttributeID: vocabulary.Name, Value: graph.Text(name)}
}

// syncNow fetches ids on the caller's goroutine.
func syncNow(t *testing.T, c *Client, ids ...string) {
	t.Helper()
	require.NoError(t, c.Worker().SyncMultipleEntities(context.Background(), ids))
}

func TestNew_RequiresRemote(t *testing.T) {
	_, err := New(Dependencies{})
	assert.True(t, errors.IsInvalid(err))
}

func TestEntity_LocalOverCached(t *testing.T) {
	c, r := newClient(t)
	r.Seed([]graph.Triple{nameOf("e", "Remote"), {Space: "s", EntityID: "e", AttributeID: vocabulary.Description, Value: graph.Text("desc")}}, nil)

	assert.True(t, c.Entity("e").IsEmpty())
	syncNow(t, c, "e")
	assert.Equal(t, "Remote", *c.Entity("e").Name)

	c.UpsertTriple(graph.Triple{EntityID: "e", AttributeID: vocabulary.Name, Value: graph.Text("Local")})
	e := c.Entity("e")
	assert.Equal(t, "Local", *e.Name)
	assert.Equal(t, "desc", *e.Description)
	assert.Len(t, c.Triples("e"), 2)

	c.RemoveTriple(graph.Triple{EntityID: "e", AttributeID: vocabulary.Description})
	assert.Nil(t, c.Entity("e").Description)
	assert.Len(t, c.Renderables("e"), 1)
}

func TestCreateRelation_Ordering(t *testing.T) {
	c, _ := newClient(t)
	from := graph.EntityRef{ID: "e"}
	typ := graph.EntityRef{ID: "rel-type"}

	first, err := c.CreateRelation(NewRelation{From: from, TypeOf: typ, To: graph.ToEntityRef{ID: "x"}})
	require.NoError(t, err)
	last, err := c.CreateRelation(NewRelation{From: from, TypeOf: typ, To: graph.ToEntityRef{ID: "z"}, After: first.Index})
	require.NoError(t, err)
	mid, err := c.CreateRelation(NewRelation{From: from, TypeOf: typ, To: graph.ToEntityRef{ID: "y"}, After: first.Index, Before: last.Index})
	require.NoError(t, err)

	assert.Equal(t, "s", mid.Space)
	assert.Equal(t, "rel-3", mid.ID)

	rels := c.Relations("e")
	require.Len(t, rels, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{rels[0].ToEntity.ID, rels[1].ToEntity.ID, rels[2].ToEntity.ID})

	// Out of order neighbours fall back to "after After".
	odd, err := c.CreateRelation(NewRelation{From: from, TypeOf: typ, To: graph.ToEntityRef{ID: "w"}, After: last.Index, Before: first.Index})
	require.NoError(t, err)
	assert.Greater(t, odd.Index, last.Index)

	_, err = c.CreateRelation(NewRelation{From: from})
	assert.True(t, errors.IsInvalid(err))
}

func TestAddType(t *testing.T) {
	c, r := newClient(t)
	r.Seed([]graph.Triple{nameOf("T", "Person")}, nil)
	syncNow(t, c, "T")

	rel, err := c.AddType("e", "T")
	require.NoError(t, err)
	assert.Equal(t, "Person", *rel.ToEntity.Name)

	again, err := c.AddType("e", "T")
	require.NoError(t, err)
	assert.Equal(t, rel.ID, again.ID)

	_, err = c.AddType("e", "U")
	require.NoError(t, err)

	e := c.Entity("e")
	assert.Equal(t, []string{"T", "U"}, e.TypeIDs())
	assert.Equal(t, "Person", *e.Types[0].Name)
}

func TestAddType_AfterZeroTerminatedIndex(t *testing.T) {
	c, r := newClient(t)
	r.Seed(nil, []graph.Relation{{Space: "s", ID: "r0", Index: "a0",
		TypeOf:     graph.EntityRef{ID: vocabulary.Types},
		FromEntity: graph.EntityRef{ID: "e"},
		ToEntity:   graph.ToEntityRef{ID: "T"}}})
	syncNow(t, c, "e")

	rel, err := c.AddType("e", "U")
	require.NoError(t, err)
	assert.Greater(t, rel.Index, "a0")
	assert.Equal(t, []string{"T", "U"}, c.Entity("e").TypeIDs())
}

func TestEntityWithSchema(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.CreateRelation(NewRelation{
		From:   graph.EntityRef{ID: "T"},
		TypeOf: graph.EntityRef{ID: vocabulary.Attributes},
		To:     graph.ToEntityRef{ID: "email"},
	})
	require.NoError(t, err)
	_, err = c.AddType("e", "T")
	require.NoError(t, err)

	e := c.EntityWithSchema("e")
	require.Len(t, e.Schema, 4)
	assert.Equal(t, "email", e.Schema[3].ID)
	assert.Len(t, c.Schema([]string{"T"}), 4)
}

func TestDeleteEntity(t *testing.T) {
	c, r := newClient(t)
	r.Seed([]graph.Triple{nameOf("e", "E")}, []graph.Relation{{Space: "s", ID: "r", Index: "a",
		TypeOf: graph.EntityRef{ID: "t"}, FromEntity: graph.EntityRef{ID: "e"}, ToEntity: graph.ToEntityRef{ID: "x"}}})
	syncNow(t, c, "e")
	c.UpsertTriple(graph.Triple{EntityID: "e", AttributeID: "local", Value: graph.Text("v")})

	assert.Equal(t, 3, c.DeleteEntity("e"))
	assert.True(t, c.Entity("e").IsEmpty())

	n, err := c.Worker().SyncPendingChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	triples, _ := r.FetchTriples(context.Background(), "e")
	assert.Empty(t, triples)
}

func TestPruneSynced(t *testing.T) {
	c, r := newClient(t)
	ctx := context.Background()
	c.UpsertTriple(graph.Triple{EntityID: "e", AttributeID: "a", Value: graph.Text("v")})
	c.UpsertTriple(graph.Triple{EntityID: "e", AttributeID: "b", Value: graph.Text("w")})

	assert.Zero(t, c.PruneSynced(), "unpublished entries stay")

	_, err := c.Worker().SyncPendingChanges(ctx)
	require.NoError(t, err)
	c.UpsertTriple(graph.Triple{EntityID: "e", AttributeID: "b", Value: graph.Text("edited")})

	assert.Equal(t, 1, c.PruneSynced())
	assert.Equal(t, 2, r.Pushes())
	assert.Len(t, c.Triples("e"), 2)
	tr, _ := c.Store().Snapshot().Len()
	assert.Equal(t, 1, tr)
}

func TestTable(t *testing.T) {
	c, r := newClient(t)
	r.Seed([]graph.Triple{nameOf("a", "Apple"), nameOf("b", "Banana")}, nil)
	c.UpsertTriple(nameOf("c", "Apricot"))

	q := table.Query{Filter: remote.Filter{Clauses: []remote.Clause{{ColumnID: vocabulary.Name, Value: "ap"}}}}
	got, err := c.Table(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestWatch(t *testing.T) {
	c, r := newClient(t)
	r.Seed([]graph.Triple{nameOf("e", "Remote")}, nil)

	var (
		mu    sync.Mutex
		names []string
	)
	cancel := c.Watch("e", func(e graph.Entity) {
		mu.Lock()
		defer mu.Unlock()
		if e.Name == nil {
			names = append(names, "")
			return
		}
		names = append(names, *e.Name)
	})

	syncNow(t, c, "e")
	c.UpsertTriple(graph.Triple{EntityID: "other", AttributeID: "a", Value: graph.Text("x")})
	c.UpsertTriple(graph.Triple{EntityID: "e", AttributeID: vocabulary.Name, Value: graph.Text("Local")})
	cancel()
	c.UpsertTriple(graph.Triple{EntityID: "e", AttributeID: vocabulary.Name, Value: graph.Text("Ignored")})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "Remote", "Local"}, names)
}

func TestEntityView(t *testing.T) {
	c, _ := newClient(t)
	view := c.EntityView("e")
	assert.True(t, view.Get().IsEmpty())
	c.UpsertTriple(nameOf("e", "E"))
	assert.Equal(t, "E", *view.Get().Name)
}

func TestRunAndRequestSync(t *testing.T) {
	c, r := newClient(t)
	r.Seed([]graph.Triple{nameOf("a", "A"), nameOf("b", "B")}, nil)

	events := make(chan syncworker.Event, 16)
	c.OnEvent(func(e syncworker.Event) { events <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.RequestSync("a", "b"))
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == syncworker.EvtMultipleSyncComplete {
				assert.Equal(t, []string{"a", "b"}, e.IDs)
				assert.Equal(t, "A", *c.Entity("a").Name)
				return
			}
		case <-deadline:
			t.Fatal("sync did not complete")
		}
	}
}

package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
)

type staticFacts struct {
	triples   map[string][]graph.Triple
	relations map[string][]graph.Relation
}

func (f staticFacts) Triples(id string) []graph.Triple     { return f.triples[id] }
func (f staticFacts) Relations(id string) []graph.Relation { return f.relations[id] }

func TestView(t *testing.T) {
	s := localstore.New()
	facts := staticFacts{
		triples: map[string][]graph.Triple{"e": {remoteTriple("s", "e", "a", "remote"), remoteTriple("s", "e", "b", "kept")}},
		relations: map[string][]graph.Relation{"e": {
			{Space: "s", ID: "r2", Index: "b", FromEntity: graph.EntityRef{ID: "e"}},
		}},
	}
	v := NewView(s.Snapshot(), facts)
	assert.Len(t, v.Triples("e"), 2)

	s.Upsert(remoteTriple("", "e", "a", "local"), "s")
	s.UpsertRelation(graph.Relation{ID: "r1", Index: "a", FromEntity: graph.EntityRef{ID: "e"}}, "s")

	// The old view is pinned to its snapshot.
	assert.Len(t, v.Relations("e"), 1)

	v = NewView(s.Snapshot(), facts)
	triples := v.Triples("e")
	assert.Equal(t, []string{"kept", "local"}, []string{triples[0].Value.Value, triples[1].Value.Value})

	rels := v.Relations("e")
	assert.Equal(t, "r1", rels[0].ID)
	assert.Equal(t, "r2", rels[1].ID)

	ts, rs := v.With("e", nil, nil)
	assert.Len(t, ts, 1)
	assert.Len(t, rs, 1)
}

func TestView_NilRemote(t *testing.T) {
	s := localstore.New()
	s.Upsert(remoteTriple("", "e", "a", "v"), "s")
	v := NewView(s.Snapshot(), nil)
	assert.Len(t, v.Triples("e"), 1)
	assert.Empty(t, v.Relations("e"))
	assert.Same(t, s.Snapshot(), v.Snapshot())
}

package merge

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
)

func remoteTriple(space, entity, attr, value string) graph.Triple {
	return graph.Triple{Space: space, EntityID: entity, AttributeID: attr, Value: graph.Text(value)}
}

func TestTriples_LocalWins(t *testing.T) {
	s := localstore.New()
	s.Upsert(graph.Triple{EntityID: "e", AttributeID: "a", EntityName: graph.Ptr("Local"), Value: graph.Text("local")}, "s")

	remote := []graph.Triple{
		{Space: "s", EntityID: "e", AttributeID: "a", EntityName: graph.Ptr("Remote"), Value: graph.Text("remote")},
		remoteTriple("s", "e", "b", "untouched"),
	}

	merged := Triples(s.Snapshot().TriplesFor("e"), remote)
	require.Len(t, merged, 2)
	assert.Equal(t, "untouched", merged[0].Value.Value)
	assert.Equal(t, "local", merged[1].Value.Value)
	assert.Equal(t, "Local", *merged[1].EntityName)
}

func TestTriples_TombstoneHidesRemote(t *testing.T) {
	s := localstore.New()
	s.Upsert(remoteTriple("", "entity1", "attr1", "v1"), "space1")
	s.Remove(remoteTriple("", "entity1", "attr1", ""), "space1")

	remote := []graph.Triple{remoteTriple("space1", "entity1", "attr1", "v1")}
	merged := Triples(s.Snapshot().TriplesFor("entity1"), remote)
	assert.Empty(t, merged)
}

func TestTriples_TombstoneWithoutRemote(t *testing.T) {
	s := localstore.New()
	s.Remove(remoteTriple("", "e", "a", ""), "s")

	assert.Empty(t, Triples(s.Snapshot().TriplesFor("e"), nil))
}

func TestTriples_DifferentSpaceIsDifferentKey(t *testing.T) {
	s := localstore.New()
	s.Remove(remoteTriple("", "e", "a", ""), "space2")

	remote := []graph.Triple{remoteTriple("space1", "e", "a", "kept")}
	merged := Triples(s.Snapshot().TriplesFor("e"), remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "kept", merged[0].Value.Value)
}

// Randomized check of the two merge invariants over many store states.
func TestTriples_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		s := localstore.New()
		var remote []graph.Triple
		for i := 0; i < 10; i++ {
			remote = append(remote, remoteTriple("s", "e", fmt.Sprintf("a%d", rng.Intn(6)), "remote"))
		}
		for i := 0; i < 8; i++ {
			tr := remoteTriple("", "e", fmt.Sprintf("a%d", rng.Intn(6)), fmt.Sprintf("local%d", i))
			if rng.Intn(3) == 0 {
				s.Remove(tr, "s")
			} else {
				s.Upsert(tr, "s")
			}
		}

		local := s.Snapshot().TriplesFor("e")
		merged := Triples(local, remote)

		byKey := make(map[string][]graph.Triple)
		for _, m := range merged {
			byKey[m.Key()] = append(byKey[m.Key()], m)
		}
		for _, op := range local {
			got := byKey[op.CompositeKey]
			if op.IsDeleted {
				assert.Empty(t, got, "tombstoned key %s visible", op.CompositeKey)
				continue
			}
			require.Len(t, got, 1)
			assert.Equal(t, op.Value, got[0].Value)
		}
	}
}

func TestRelations_MergeAndSort(t *testing.T) {
	s := localstore.New()
	rel := func(id, index, to string) graph.Relation {
		return graph.Relation{Space: "s", ID: id, Index: index,
			TypeOf:     graph.EntityRef{ID: "t"},
			FromEntity: graph.EntityRef{ID: "e"},
			ToEntity:   graph.ToEntityRef{ID: to}}
	}

	s.UpsertRelation(rel("r2", "a", "local-target"), "s")
	s.RemoveRelation(rel("r3", "", ""), "s")

	remote := []graph.Relation{rel("r1", "c", "x"), rel("r2", "b", "remote-target"), rel("r3", "d", "gone")}

	merged := Relations(s.Snapshot().RelationsFrom("e"), remote)
	require.Len(t, merged, 2)
	assert.Equal(t, "r1", merged[0].ID)
	assert.Equal(t, "local-target", merged[1].ToEntity.ID)

	sorted := SortedRelations(s.Snapshot().RelationsFrom("e"), remote)
	assert.Equal(t, "r2", sorted[0].ID)
	assert.Equal(t, "r1", sorted[1].ID)
}

func TestByKey_Generic(t *testing.T) {
	type fact struct{ k, v string }
	key := func(f fact) string { return f.k }

	out := ByKey(
		[]Local[fact]{{Key: "a", Fact: fact{"a", "local"}}, {Key: "b", Deleted: true}},
		[]fact{{"a", "remote"}, {"b", "remote"}, {"c", "remote"}},
		key,
	)
	assert.Equal(t, []fact{{"c", "remote"}, {"a", "local"}}, out)
}

package projection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/merge"
	"github.com/c360/graphsync/vocabulary"
)

func typesRelation(id, from, to, index string) graph.Relation {
	return graph.Relation{
		Space: "space1", ID: id, Index: index,
		TypeOf:     graph.EntityRef{ID: vocabulary.Types},
		FromEntity: graph.EntityRef{ID: from},
		ToEntity:   graph.ToEntityRef{ID: to, Name: graph.Ptr(to)},
	}
}

func TestProject_Empty(t *testing.T) {
	e := Project("nobody", nil, nil)

	want := graph.Entity{
		ID:               "nobody",
		NameTripleSpaces: []string{},
		Types:            []graph.EntityRef{},
		Triples:          []graph.Triple{},
		RelationsOut:     []graph.Relation{},
	}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("empty entity mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_NameAndDescription(t *testing.T) {
	triples := []graph.Triple{
		{Space: "a", EntityID: "e", AttributeID: vocabulary.Name, Value: graph.Text("First")},
		{Space: "b", EntityID: "e", AttributeID: vocabulary.Name, Value: graph.Text("Second")},
		{Space: "a", EntityID: "e", AttributeID: vocabulary.Name, Value: graph.Text("Dup space")},
		{Space: "a", EntityID: "e", AttributeID: vocabulary.Description, Value: graph.Text("About")},
		{Space: "a", EntityID: "other", AttributeID: vocabulary.Name, Value: graph.Text("Ignored")},
	}

	e := Project("e", triples, nil)
	require.NotNil(t, e.Name)
	assert.Equal(t, "First", *e.Name)
	assert.Equal(t, []string{"a", "b"}, e.NameTripleSpaces)
	assert.Equal(t, "About", *e.Description)
	assert.Len(t, e.Triples, 4)
}

func TestProject_TypeUnion(t *testing.T) {
	triples := []graph.Triple{
		{Space: "s", EntityID: "e", AttributeID: vocabulary.Types, Value: graph.EntityValue("T1")},
		{Space: "s", EntityID: "e", AttributeID: vocabulary.Types, Value: graph.Text("not-an-entity")},
	}
	relations := []graph.Relation{typesRelation("r1", "e", "T2", "a")}

	e := Project("e", triples, relations)
	assert.Equal(t, []string{"T2", "T1"}, e.TypeIDs())
	assert.True(t, e.HasType("T1"))
	assert.True(t, e.HasType("T2"))
}

func TestProject_TypeDedup(t *testing.T) {
	triples := []graph.Triple{
		{Space: "s", EntityID: "e", AttributeID: vocabulary.Types, Value: graph.EntityValue("T1")},
	}
	relations := []graph.Relation{
		typesRelation("r1", "e", "T1", "a"),
		typesRelation("r2", "e", "T1", "b"),
	}

	e := Project("e", triples, relations, WithNameResolver(func(id string) *string {
		return graph.Ptr("resolved " + id)
	}))
	require.Len(t, e.Types, 1)
	assert.Equal(t, "T1", *e.Types[0].Name)
}

// Relation to TypeA through the op store plus a Types triple to TypeB yields
// [TypeA, TypeB] in discovery order.
func TestProject_TypesThroughStore(t *testing.T) {
	s := localstore.New()
	s.UpsertRelation(typesRelation("rel", "entity1", "TypeA", "a"), "space1")
	s.Upsert(graph.Triple{EntityID: "entity1", AttributeID: vocabulary.Types, Value: graph.EntityValue("TypeB")}, "space1")

	snap := s.Snapshot()
	e := Project("entity1",
		merge.Triples(snap.TriplesFor("entity1"), nil),
		merge.Relations(snap.RelationsFrom("entity1"), nil))

	assert.Equal(t, []string{"TypeA", "TypeB"}, e.TypeIDs())
}

func TestProject_RelationsSortedByIndex(t *testing.T) {
	relations := []graph.Relation{
		typesRelation("r2", "e", "B", "b"),
		typesRelation("r1", "e", "A", "a"),
		typesRelation("rx", "someone-else", "C", "0"),
	}
	e := Project("e", nil, relations)
	require.Len(t, e.RelationsOut, 2)
	assert.Equal(t, "r1", e.RelationsOut[0].ID)
}

type mapResolver struct {
	triples   map[string][]graph.Triple
	relations map[string][]graph.Relation
}

func (m mapResolver) Triples(id string) []graph.Triple     { return m.triples[id] }
func (m mapResolver) Relations(id string) []graph.Relation { return m.relations[id] }

func TestSchema(t *testing.T) {
	attrRel := func(id, typeID, attrID, index string, name *string) graph.Relation {
		return graph.Relation{Space: "s", ID: id, Index: index,
			TypeOf:     graph.EntityRef{ID: vocabulary.Attributes},
			FromEntity: graph.EntityRef{ID: typeID},
			ToEntity:   graph.ToEntityRef{ID: attrID, Name: name}}
	}

	r := mapResolver{
		triples: map[string][]graph.Triple{
			"age": {{Space: "s", EntityID: "age", AttributeID: vocabulary.Name, Value: graph.Text("Age")}},
		},
		relations: map[string][]graph.Relation{
			"Person": {
				attrRel("r2", "Person", "age", "b", nil),
				attrRel("r1", "Person", "email", "a", graph.Ptr("Email")),
				attrRel("r3", "Person", vocabulary.Name, "c", graph.Ptr("Name")),
			},
			"Employee": {
				attrRel("r4", "Employee", "email", "a", graph.Ptr("Email")),
				attrRel("r5", "Employee", "salary", "b", graph.Ptr("Salary")),
			},
			"age": {{Space: "s", ID: "vt", TypeOf: graph.EntityRef{ID: vocabulary.ValueType},
				FromEntity: graph.EntityRef{ID: "age"}, ToEntity: graph.ToEntityRef{ID: vocabulary.NumberValue}}},
		},
	}

	schema := Schema([]string{"Person", "Employee"}, r)
	ids := make([]string, len(schema))
	for i, d := range schema {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{vocabulary.Name, vocabulary.Description, vocabulary.Types, "email", "age", "salary"}, ids)
	assert.Equal(t, "Age", schema[4].Name)
	assert.Equal(t, vocabulary.NumberValue, schema[4].ValueType)

	// Resolver slices are left untouched.
	assert.Equal(t, "r2", r.relations["Person"][0].ID)
}

func TestSchema_NoTypes(t *testing.T) {
	schema := Schema(nil, mapResolver{})
	assert.Len(t, schema, 3)
}

package testutil

import (
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/vocabulary"
)

// Fixture ids. Types are ordinary entities named by a NAME triple.
const (
	Space = "space-1"

	PersonType  = "type-person"
	ProjectType = "type-project"
	WorksOn     = "attr-works-on"

	Alice   = "person-alice"
	Bob     = "person-bob"
	Graphs  = "project-graphs"
	Website = "project-website"
)

// Name returns a NAME triple.
func Name(space, id, name string) graph.Triple {
	return Text(space, id, vocabulary.Name, name)
}

// Text returns a text-valued triple.
func Text(space, id, attr, value string) graph.Triple {
	return graph.Triple{Space: space, EntityID: id, AttributeID: attr, Value: graph.Text(value)}
}

// Relation returns a relation from -> to of type typeID. The relation id
// is derived from its endpoints.
func Relation(space, from, typeID, to, index string) graph.Relation {
	return graph.Relation{
		Space:      space,
		ID:         "rel-" + from + "-" + typeID + "-" + to,
		Index:      index,
		TypeOf:     graph.EntityRef{ID: typeID},
		FromEntity: graph.EntityRef{ID: from},
		ToEntity:   graph.ToEntityRef{ID: to, RenderableType: graph.RenderRelation},
	}
}

// TypeRelation tags id with typeID.
func TypeRelation(space, id, typeID, index string) graph.Relation {
	return Relation(space, id, vocabulary.Types, typeID, index)
}

// SampleGraph is a small team graph: two people, two projects, and the
// type entities that classify them. Alice works on both projects, in order.
func SampleGraph() ([]graph.Triple, []graph.Relation) {
	triples := []graph.Triple{
		Name(Space, PersonType, "Person"),
		Name(Space, ProjectType, "Project"),
		Name(Space, WorksOn, "Works on"),
		Name(Space, Alice, "Alice"),
		Text(Space, Alice, vocabulary.Description, "Maintains the sync engine"),
		Name(Space, Bob, "Bob"),
		Name(Space, Graphs, "Graph sync"),
		Name(Space, Website, "Website"),
	}
	relations := []graph.Relation{
		TypeRelation(Space, Alice, PersonType, "a0"),
		TypeRelation(Space, Bob, PersonType, "a0"),
		TypeRelation(Space, Graphs, ProjectType, "a0"),
		TypeRelation(Space, Website, ProjectType, "a0"),
		Relation(Space, Alice, WorksOn, Graphs, "a0"),
		Relation(Space, Alice, WorksOn, Website, "a1"),
	}
	return triples, relations
}

// Seeder is implemented by remote/memory.Remote.
type Seeder interface {
	Seed(triples []graph.Triple, relations []graph.Relation)
}

// SeedSample loads SampleGraph into s.
func SeedSample(s Seeder) {
	s.Seed(SampleGraph())
}

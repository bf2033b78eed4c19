// Package projection derives Entity views from merged facts.
//
// Projection is pure: it never fetches. Whatever facts the caller has merged
// for an id (local ops over the cached remote snapshot) are all it sees. An
// id with no facts projects to a valid empty entity.
package projection

import (
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/vocabulary"
)

// Option tunes a projection.
type Option func(*config)

type config struct {
	nameOf func(entityID string) *string
}

// WithNameResolver fills in type names the facts do not carry, such as the
// target of an ENTITY-valued Types triple.
func WithNameResolver(fn func(entityID string) *string) Option {
	return func(c *config) { c.nameOf = fn }
}

// Project builds the Entity for entityID from its merged triples and
// outgoing relations. Facts about other entities are ignored.
func Project(entityID string, triples []graph.Triple, relations []graph.Relation, opts ...Option) graph.Entity {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	e := graph.EmptyEntity(entityID)

	for _, t := range triples {
		if t.EntityID != entityID {
			continue
		}
		e.Triples = append(e.Triples, t)

		switch t.AttributeID {
		case vocabulary.Name:
			if e.Name == nil {
				e.Name = graph.Ptr(t.Value.Value)
			}
			e.NameTripleSpaces = appendUnique(e.NameTripleSpaces, t.Space)
		case vocabulary.Description:
			if e.Description == nil {
				e.Description = graph.Ptr(t.Value.Value)
			}
		}
	}

	for _, r := range relations {
		if r.FromEntity.ID == entityID {
			e.RelationsOut = append(e.RelationsOut, r)
		}
	}
	graph.SortByIndex(e.RelationsOut)

	e.Types = Types(e.Triples, e.RelationsOut, cfg.nameOf)
	return e
}

// Types returns the union of relation-expressed and triple-expressed types,
// deduplicated by id with the first occurrence kept. Relations are read
// first, in the order given, then ENTITY-valued Types triples.
func Types(triples []graph.Triple, relations []graph.Relation, nameOf func(string) *string) []graph.EntityRef {
	types := []graph.EntityRef{}
	seen := make(map[string]struct{})

	add := func(ref graph.EntityRef) {
		if ref.ID == "" {
			return
		}
		if _, dup := seen[ref.ID]; dup {
			return
		}
		if ref.Name == nil && nameOf != nil {
			ref.Name = nameOf(ref.ID)
		}
		seen[ref.ID] = struct{}{}
		types = append(types, ref)
	}

	for _, r := range relations {
		if r.TypeOf.ID == vocabulary.Types {
			add(graph.EntityRef{ID: r.ToEntity.ID, Name: r.ToEntity.Name})
		}
	}
	for _, t := range triples {
		if t.IsType(vocabulary.Types) {
			add(graph.EntityRef{ID: t.Value.Value})
		}
	}
	return types
}

func appendUnique(xs []string, x string) []string {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}

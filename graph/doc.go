// Package graph defines the knowledge-graph data model shared by every other
// package: triples, relations, the derived Entity view and the renderable
// variant handed to presentation layers.
//
// A Triple is a (space, entity, attribute) -> value fact. A Relation is a
// typed, ordered edge between two entities and is itself an entity with its
// own id. Entities are never stored: they are projected from the merged
// stream of triples and relations on every read.
//
// Identity is derived, not assigned. TripleKey and RelationKey produce the
// composite keys that let a local write shadow the matching remote fact:
//
//	graph.TripleKey("space1", "entity1", "attr1") // "space1:entity1:attr1"
//	graph.RelationKey("space1", "rel1")           // "space1:rel1"
package graph

package localstore

import (
	"github.com/c360/graphsync/graph"
)

// OpKind is the write intent recorded for a key.
type OpKind string

const (
	OpSet    OpKind = "SET"
	OpDelete OpKind = "DELETE"
)

// Meta is the local-only bookkeeping carried by every entry.
//
// Version is the store version at which the entry was written. It only ever
// grows, so a background task that captured an entry's version can tell
// whether the user wrote to the same key again since.
type Meta struct {
	CompositeKey     string `json:"key"`
	Op               OpKind `json:"op"`
	HasBeenPublished bool   `json:"hasBeenPublished"`
	Timestamp        string `json:"timestamp"`
	IsDeleted        bool   `json:"isDeleted"`
	Version          uint64 `json:"version"`
}

// TripleOp is a local triple write.
type TripleOp struct {
	graph.Triple
	Meta
}

// RelationOp is a local relation write.
type RelationOp struct {
	graph.Relation
	Meta
}

// VersionedKey names an entry at a specific version.
type VersionedKey struct {
	Key     string
	Version uint64
}

func newTripleOp(t graph.Triple, space string, kind OpKind, ts string) TripleOp {
	t.Space = space
	op := TripleOp{Triple: t, Meta: Meta{Op: kind, Timestamp: ts}}
	if kind == OpDelete {
		op.Value = graph.Placeholder()
		op.IsDeleted = true
	}
	op.CompositeKey = op.Triple.Key()
	return op
}

func newRelationOp(r graph.Relation, space string, kind OpKind, ts string) RelationOp {
	r.Space = space
	op := RelationOp{Relation: r, Meta: Meta{Op: kind, Timestamp: ts}}
	if kind == OpDelete {
		op.IsDeleted = true
	}
	op.CompositeKey = op.Relation.Key()
	return op
}

// Package merge overlays local ops on remote facts.
//
// The rule is simple and total: if a key has a local entry, the remote fact
// for that key is dropped, whatever the local entry says. Local entries are
// then appended unless they are tombstones. There is no timestamp
// arbitration against the remote; the local op store already holds at most
// one entry per key.
//
// The functions are pure and do not sort. Relation order is a read-time
// concern, see graph.SortByIndex.
package merge

import (
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
)

// Local is a local entry as seen by the merge: a fact, its key and its
// tombstone flag.
type Local[F any] struct {
	Key     string
	Fact    F
	Deleted bool
}

// ByKey drops every remote fact whose key appears in local, then appends the
// non-deleted local facts in the order given.
func ByKey[F any](local []Local[F], remote []F, key func(F) string) []F {
	shadowed := make(map[string]struct{}, len(local))
	for _, l := range local {
		shadowed[l.Key] = struct{}{}
	}

	out := make([]F, 0, len(remote)+len(local))
	for _, f := range remote {
		if _, ok := shadowed[key(f)]; ok {
			continue
		}
		out = append(out, f)
	}
	for _, l := range local {
		if l.Deleted {
			continue
		}
		out = append(out, l.Fact)
	}
	return out
}

// Triples merges local triple ops over remote triples.
func Triples(local []localstore.TripleOp, remote []graph.Triple) []graph.Triple {
	ls := make([]Local[graph.Triple], len(local))
	for i, op := range local {
		ls[i] = Local[graph.Triple]{Key: op.CompositeKey, Fact: op.Triple, Deleted: op.IsDeleted}
	}
	return ByKey(ls, remote, graph.Triple.Key)
}

// Relations merges local relation ops over remote relations.
func Relations(local []localstore.RelationOp, remote []graph.Relation) []graph.Relation {
	ls := make([]Local[graph.Relation], len(local))
	for i, op := range local {
		ls[i] = Local[graph.Relation]{Key: op.CompositeKey, Fact: op.Relation, Deleted: op.IsDeleted}
	}
	return ByKey(ls, remote, graph.Relation.Key)
}

// SortedRelations merges and orders the result by index.
func SortedRelations(local []localstore.RelationOp, remote []graph.Relation) []graph.Relation {
	out := Relations(local, remote)
	graph.SortByIndex(out)
	return out
}

package merge

import (
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
)

// Facts is a read-only source of remote facts, usually the read cache.
type Facts interface {
	Triples(entityID string) []graph.Triple
	Relations(entityID string) []graph.Relation
}

// View overlays one local snapshot on a remote fact source. The snapshot is
// fixed at construction, so every read through a View sees the same local
// state. View satisfies projection.Resolver.
type View struct {
	snap   *localstore.Snapshot
	remote Facts
}

// NewView pairs snap with remote. A nil remote reads as empty.
func NewView(snap *localstore.Snapshot, remote Facts) View {
	return View{snap: snap, remote: remote}
}

// Snapshot returns the local snapshot the view reads.
func (v View) Snapshot() *localstore.Snapshot { return v.snap }

func (v View) Triples(entityID string) []graph.Triple {
	var remote []graph.Triple
	if v.remote != nil {
		remote = v.remote.Triples(entityID)
	}
	return Triples(v.snap.TriplesFor(entityID), remote)
}

func (v View) Relations(entityID string) []graph.Relation {
	var remote []graph.Relation
	if v.remote != nil {
		remote = v.remote.Relations(entityID)
	}
	return SortedRelations(v.snap.RelationsFrom(entityID), remote)
}

// With returns merged facts for entityID using the given remote facts in
// place of the view's source.
func (v View) With(entityID string, triples []graph.Triple, relations []graph.Relation) ([]graph.Triple, []graph.Relation) {
	return Triples(v.snap.TriplesFor(entityID), triples),
		SortedRelations(v.snap.RelationsFrom(entityID), relations)
}

package localstore

import (
	"sort"
	"sync"
)

// Snapshot is an immutable point-in-time view of the store. Readers may hold
// it as long as they like; writes install a new snapshot instead of mutating
// this one.
type Snapshot struct {
	version   uint64
	triples   map[string]TripleOp
	relations map[string]RelationOp

	indexOnce      sync.Once
	tripleByEntity map[string][]TripleOp
	relationByFrom map[string][]RelationOp
	orderedTriples []TripleOp
	orderedRels    []RelationOp
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		triples:   map[string]TripleOp{},
		relations: map[string]RelationOp{},
	}
}

// Version is incremented once per written entry, and once per write that
// only republishes or drops entries.
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of triple and relation entries.
func (s *Snapshot) Len() (triples, relations int) {
	return len(s.triples), len(s.relations)
}

// Triple returns the entry stored under key.
func (s *Snapshot) Triple(key string) (TripleOp, bool) {
	op, ok := s.triples[key]
	return op, ok
}

// Relation returns the entry stored under key.
func (s *Snapshot) Relation(key string) (RelationOp, bool) {
	op, ok := s.relations[key]
	return op, ok
}

func (s *Snapshot) index() {
	s.indexOnce.Do(func() {
		s.orderedTriples = make([]TripleOp, 0, len(s.triples))
		for _, op := range s.triples {
			s.orderedTriples = append(s.orderedTriples, op)
		}
		sort.Slice(s.orderedTriples, func(i, j int) bool {
			return s.orderedTriples[i].Version < s.orderedTriples[j].Version
		})

		s.orderedRels = make([]RelationOp, 0, len(s.relations))
		for _, op := range s.relations {
			s.orderedRels = append(s.orderedRels, op)
		}
		sort.Slice(s.orderedRels, func(i, j int) bool {
			return s.orderedRels[i].Version < s.orderedRels[j].Version
		})

		s.tripleByEntity = make(map[string][]TripleOp)
		for _, op := range s.orderedTriples {
			s.tripleByEntity[op.EntityID] = append(s.tripleByEntity[op.EntityID], op)
		}
		s.relationByFrom = make(map[string][]RelationOp)
		for _, op := range s.orderedRels {
			s.relationByFrom[op.FromEntity.ID] = append(s.relationByFrom[op.FromEntity.ID], op)
		}
	})
}

// Triples returns every triple entry, tombstones included, in write order.
// The returned slice is shared; do not modify it.
func (s *Snapshot) Triples() []TripleOp {
	s.index()
	return s.orderedTriples
}

// Relations returns every relation entry, tombstones included, in write order.
// The returned slice is shared; do not modify it.
func (s *Snapshot) Relations() []RelationOp {
	s.index()
	return s.orderedRels
}

// TriplesFor returns the entries whose EntityID is entityID.
func (s *Snapshot) TriplesFor(entityID string) []TripleOp {
	s.index()
	return s.tripleByEntity[entityID]
}

// RelationsFrom returns the entries whose FromEntity is entityID.
func (s *Snapshot) RelationsFrom(entityID string) []RelationOp {
	s.index()
	return s.relationByFrom[entityID]
}

// EntityIDs returns every entity with at least one local entry, sorted.
func (s *Snapshot) EntityIDs() []string {
	s.index()
	ids := make([]string, 0, len(s.tripleByEntity)+len(s.relationByFrom))
	for id := range s.tripleByEntity {
		ids = append(ids, id)
	}
	for id := range s.relationByFrom {
		if _, ok := s.tripleByEntity[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Pending returns the entries not yet published, in write order.
func (s *Snapshot) Pending() ([]TripleOp, []RelationOp) {
	var triples []TripleOp
	for _, op := range s.Triples() {
		if !op.HasBeenPublished {
			triples = append(triples, op)
		}
	}
	var relations []RelationOp
	for _, op := range s.Relations() {
		if !op.HasBeenPublished {
			relations = append(relations, op)
		}
	}
	return triples, relations
}

// builder produces the next snapshot, copying each map at most once.
type builder struct {
	prev      *Snapshot
	version   uint64
	triples   map[string]TripleOp
	relations map[string]RelationOp
	changed   []changedKey
}

type changedKey struct {
	key      string
	relation bool
	deleted  bool
}

func newBuilder(prev *Snapshot) *builder {
	return &builder{prev: prev, version: prev.version}
}

func (b *builder) tripleMap() map[string]TripleOp {
	if b.triples == nil {
		b.triples = make(map[string]TripleOp, len(b.prev.triples)+1)
		for k, v := range b.prev.triples {
			b.triples[k] = v
		}
	}
	return b.triples
}

func (b *builder) relationMap() map[string]RelationOp {
	if b.relations == nil {
		b.relations = make(map[string]RelationOp, len(b.prev.relations)+1)
		for k, v := range b.prev.relations {
			b.relations[k] = v
		}
	}
	return b.relations
}

func (b *builder) putTriple(op TripleOp) TripleOp {
	b.version++
	op.Version = b.version
	b.tripleMap()[op.CompositeKey] = op
	b.changed = append(b.changed, changedKey{key: op.CompositeKey})
	return op
}

func (b *builder) putRelation(op RelationOp) RelationOp {
	b.version++
	op.Version = b.version
	b.relationMap()[op.CompositeKey] = op
	b.changed = append(b.changed, changedKey{key: op.CompositeKey, relation: true})
	return op
}

// replaceTriple stores op without bumping its version.
func (b *builder) replaceTriple(op TripleOp) {
	b.tripleMap()[op.CompositeKey] = op
	b.changed = append(b.changed, changedKey{key: op.CompositeKey})
}

func (b *builder) replaceRelation(op RelationOp) {
	b.relationMap()[op.CompositeKey] = op
	b.changed = append(b.changed, changedKey{key: op.CompositeKey, relation: true})
}

func (b *builder) dropTriple(key string) {
	delete(b.tripleMap(), key)
	b.changed = append(b.changed, changedKey{key: key, deleted: true})
}

func (b *builder) dropRelation(key string) {
	delete(b.relationMap(), key)
	b.changed = append(b.changed, changedKey{key: key, relation: true, deleted: true})
}

// build installs the changes. A write that only replaced or dropped entries
// still moves the snapshot version so derived views notice; entry versions
// are left alone.
func (b *builder) build() *Snapshot {
	if b.version == b.prev.version && len(b.changed) > 0 {
		b.version++
	}
	next := &Snapshot{version: b.version, triples: b.triples, relations: b.relations}
	if next.triples == nil {
		next.triples = b.prev.triples
	}
	if next.relations == nil {
		next.relations = b.prev.relations
	}
	return next
}

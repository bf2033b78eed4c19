package client

import (
	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/pkg/fracindex"
	"github.com/c360/graphsync/vocabulary"
)

func (c *Client) spaceOf(s string) string {
	if s != "" {
		return s
	}
	return c.space
}

// UpsertTriple writes t, replacing any local entry for its key. An empty
// t.Space uses the client's default space.
func (c *Client) UpsertTriple(t graph.Triple) localstore.TripleOp {
	return c.store.Upsert(t, c.spaceOf(t.Space))
}

// RemoveTriple tombstones t's key.
func (c *Client) RemoveTriple(t graph.Triple) localstore.TripleOp {
	return c.store.Remove(t, c.spaceOf(t.Space))
}

// NewRelation describes a relation to create.
type NewRelation struct {
	Space  string
	ID     string // generated when empty
	From   graph.EntityRef
	TypeOf graph.EntityRef
	To     graph.ToEntityRef

	// After and Before are the indexes of the neighbours the relation is
	// inserted between. Either may be empty.
	After  string
	Before string
}

// CreateRelation writes a new relation ordered between its neighbours.
//
// A neighbour index that is malformed, or a pair that is out of order, is
// treated as missing: the relation goes after After when that is usable,
// otherwise before Before, otherwise at the start.
func (c *Client) CreateRelation(n NewRelation) (graph.Relation, error) {
	if n.From.ID == "" || n.TypeOf.ID == "" || n.To.ID == "" {
		return graph.Relation{}, errors.WrapInvalid(graph.ErrInvalidRelation, "client", "CreateRelation", "from, typeOf and to are required")
	}
	id := n.ID
	if id == "" {
		id = c.newID()
	}
	r := graph.Relation{
		Space:      c.spaceOf(n.Space),
		ID:         id,
		Index:      c.indexBetween(n.After, n.Before),
		TypeOf:     n.TypeOf,
		FromEntity: n.From,
		ToEntity:   n.To,
	}
	c.store.UpsertRelation(r, r.Space)
	return r, nil
}

func (c *Client) indexBetween(after, before string) string {
	key, err := fracindex.KeyBetween(after, before)
	if err == nil {
		return key
	}
	c.logger.Debug("Relation neighbours unusable", "after", after, "before", before, "error", err)
	if key, err := fracindex.KeyBetween(after, ""); err == nil {
		return key
	}
	if key, err := fracindex.KeyBetween("", before); err == nil {
		return key
	}
	key, _ = fracindex.KeyBetween("", "")
	return key
}

// AddType relates entityID to typeID through a Types relation placed after
// the entity's existing relations. Adding a type the entity already has
// returns the existing relation.
func (c *Client) AddType(entityID string, typeID string) (graph.Relation, error) {
	rels := c.Relations(entityID)
	last := ""
	for _, r := range rels {
		if r.TypeOf.ID == vocabulary.Types && r.ToEntity.ID == typeID {
			return r, nil
		}
		if r.Index > last {
			last = r.Index
		}
	}
	e := c.Entity(typeID)
	return c.CreateRelation(NewRelation{
		From:   graph.EntityRef{ID: entityID, Name: c.Entity(entityID).Name},
		TypeOf: graph.EntityRef{ID: vocabulary.Types, Name: graph.Ptr("Types")},
		To:     graph.ToEntityRef{ID: typeID, Name: e.Name},
		After:  last,
	})
}

// RemoveRelation tombstones r's key.
func (c *Client) RemoveRelation(r graph.Relation) localstore.RelationOp {
	return c.store.RemoveRelation(r, c.spaceOf(r.Space))
}

// DeleteEntity tombstones every triple and outgoing relation currently
// visible for id, local or cached, and returns how many were written. The
// tombstones reach the remote on the next Publish.
func (c *Client) DeleteEntity(id string) int {
	v := c.view()
	triples, relations := v.Triples(id), v.Relations(id)
	for _, t := range triples {
		c.store.Remove(t, t.Space)
	}
	for _, r := range relations {
		c.store.RemoveRelation(r, r.Space)
	}
	c.logger.Debug("Entity tombstoned", "id", id, "triples", len(triples), "relations", len(relations))
	return len(triples) + len(relations)
}

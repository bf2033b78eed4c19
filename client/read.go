package client

import (
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/merge"
	"github.com/c360/graphsync/projection"
	"github.com/c360/graphsync/vocabulary"
)

func (c *Client) view() merge.View {
	return merge.NewView(c.store.Snapshot(), c.cache)
}

func project(v merge.View, id string) graph.Entity {
	nameOf := func(other string) *string {
		return projection.Project(other, v.Triples(other), v.Relations(other)).Name
	}
	return projection.Project(id, v.Triples(id), v.Relations(id), projection.WithNameResolver(nameOf))
}

// Entity projects id from local ops over the cached remote state. An id
// nothing is known about projects to an empty entity.
func (c *Client) Entity(id string) graph.Entity {
	return project(c.view(), id)
}

// EntityWithSchema is Entity with Schema filled from the entity's types.
func (c *Client) EntityWithSchema(id string) graph.Entity {
	v := c.view()
	e := project(v, id)
	e.Schema = projection.Schema(e.TypeIDs(), v)
	return e
}

// Triples returns the merged triples of id.
func (c *Client) Triples(id string) []graph.Triple {
	return c.view().Triples(id)
}

// Relations returns the merged outgoing relations of id, ordered by index.
func (c *Client) Relations(id string) []graph.Relation {
	return c.view().Relations(id)
}

// Schema returns the attributes carried by instances of typeIDs.
func (c *Client) Schema(typeIDs []string) []vocabulary.AttributeDescriptor {
	return projection.Schema(typeIDs, c.view())
}

// Renderables returns id's merged facts as renderable fields.
func (c *Client) Renderables(id string) []graph.Renderable {
	v := c.view()
	return graph.RenderablesFor(v.Triples(id), v.Relations(id))
}

// EntityView returns a cached projection of id that recomputes only after
// a local write or a cache update.
func (c *Client) EntityView(id string) *localstore.ComputedView[graph.Entity] {
	return localstore.Computed(c.store, func(s *localstore.Snapshot) graph.Entity {
		return project(merge.NewView(s, c.cache), id)
	}, c.cache.Version)
}

// IsDeleted reports whether the last fetch found id deleted remotely.
func (c *Client) IsDeleted(id string) bool {
	return c.cache.IsDeleted(id)
}

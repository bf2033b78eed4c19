// Package remote defines the source of truth the sync worker reconciles
// against. Transports live in the subpackages: memory for tests and
// single-process use, kvremote for a NATS JetStream KV bucket and subgraph
// for a GraphQL endpoint.
package remote

import (
	"context"

	"github.com/c360/graphsync/graph"
)

// EntityPayload is the remote header of an entity, optionally with its facts.
type EntityPayload struct {
	ID          string            `json:"id"`
	Name        *string           `json:"name"`
	Description *string           `json:"description,omitempty"`
	Types       []graph.EntityRef `json:"types,omitempty"`
	Triples     []graph.Triple    `json:"triples,omitempty"`
	Relations   []graph.Relation  `json:"relationsOut,omitempty"`
}

// TripleChange is one triple write or delete sent to the remote.
type TripleChange struct {
	Triple  graph.Triple `json:"triple"`
	Deleted bool         `json:"deleted,omitempty"`
}

// RelationChange is one relation write or delete sent to the remote.
type RelationChange struct {
	Relation graph.Relation `json:"relation"`
	Deleted  bool           `json:"deleted,omitempty"`
}

// Source is a remote graph. Reads honour ctx cancellation. Pushes are
// expected to complete once started; callers pass a detached context.
type Source interface {
	// FetchEntity returns nil, nil when the entity does not exist.
	FetchEntity(ctx context.Context, id string) (*EntityPayload, error)
	FetchTriples(ctx context.Context, entityID string) ([]graph.Triple, error)
	FetchRelations(ctx context.Context, entityID string) ([]graph.Relation, error)
	IsDeleted(ctx context.Context, id string) (bool, error)

	PushEntity(ctx context.Context, e EntityPayload) error
	PushTriple(ctx context.Context, c TripleChange) error
	PushRelation(ctx context.Context, c RelationChange) error
	PushDelete(ctx context.Context, id string) error
}

// Page selects a window of query results.
type Page struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// DefaultPageSize is used when Page.Limit is zero.
const DefaultPageSize = 50

// Querier is a Source that can list entities matching a filter.
type Querier interface {
	Source
	QueryEntities(ctx context.Context, f Filter, p Page) ([]EntityPayload, error)
}

// Window applies p to n results and returns the slice bounds.
func (p Page) Window(n int) (start, end int) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	start = min(max(p.Offset, 0), n)
	end = min(start+limit, n)
	return start, end
}

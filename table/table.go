package table

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/merge"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/projection"
	"github.com/c360/graphsync/readcache"
	"github.com/c360/graphsync/remote"
)

// Query selects a table page.
type Query struct {
	Filter remote.Filter `json:"filter"`
	Page   remote.Page   `json:"page"`
}

// Dependencies for MergeEntities. Remote may be nil, in which case only
// local and cached state is listed.
type Dependencies struct {
	Remote  remote.Querier
	Store   *localstore.Store
	Cache   *readcache.Cache
	Logger  *slog.Logger
	Metrics *metric.Metrics

	// FetchLimit bounds concurrent fetches of local-only entities the
	// cache has never seen. Zero means 8.
	FetchLimit int
}

// MergeEntities returns the remote page for q with local edits applied,
// followed by entities that match only because of local writes. Remote
// page order is kept; local-only additions follow in id order and are
// listed on the first page only.
//
// A failing remote query is returned as an error. Failing fetches for
// local-only entities are logged and those entities are projected from
// local state alone.
func MergeEntities(ctx context.Context, q Query, deps Dependencies) ([]graph.Entity, error) {
	if deps.Store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "table", "MergeEntities", "store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "table")
	start := time.Now()

	var page []remote.EntityPayload
	if deps.Remote != nil {
		var err error
		page, err = deps.Remote.QueryEntities(ctx, q.Filter, q.Page)
		if err != nil {
			return nil, errors.Wrap(err, "table", "MergeEntities", "query remote page")
		}
	}

	view := merge.NewView(deps.Store.Snapshot(), cacheFacts(deps.Cache))
	nameOf := func(id string) *string {
		return projection.Project(id, view.Triples(id), view.Relations(id)).Name
	}

	seen := make(map[string]bool, len(page))
	out := make([]graph.Entity, 0, len(page))
	for _, p := range page {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		triples, relations := view.With(p.ID, p.Triples, p.Relations)
		out = appendMatch(out, q.Filter, projection.Project(p.ID, triples, relations, projection.WithNameResolver(nameOf)))
	}

	var local []candidate
	if q.Page.Offset <= 0 {
		var err error
		local, err = localCandidates(ctx, view, seen, deps, logger)
		if err != nil {
			return nil, err
		}
	}
	for _, c := range local {
		triples, relations := view.With(c.id, c.triples, c.relations)
		out = appendMatch(out, q.Filter, projection.Project(c.id, triples, relations, projection.WithNameResolver(nameOf)))
	}

	if deps.Metrics != nil {
		deps.Metrics.MergeDuration.Observe(time.Since(start).Seconds())
	}
	logger.Debug("Table merged", "remote", len(page), "local", len(local), "rows", len(out))
	return out, nil
}

func appendMatch(out []graph.Entity, f remote.Filter, e graph.Entity) []graph.Entity {
	if e.IsEmpty() || !f.Match(e) {
		return out
	}
	return append(out, e)
}

type candidate struct {
	id        string
	triples   []graph.Triple
	relations []graph.Relation
}

// localCandidates lists entities with local ops that the remote page did
// not return, with their remote facts taken from the cache or, when the
// cache has never seen them, fetched individually. An entity the remote
// reported deleted is listed only when a pending local write recreates it.
func localCandidates(ctx context.Context, view merge.View, seen map[string]bool, deps Dependencies, logger *slog.Logger) ([]candidate, error) {
	snap := view.Snapshot()
	var out []candidate
	for _, id := range snap.EntityIDs() {
		if seen[id] {
			continue
		}
		if deps.Cache != nil && deps.Cache.IsDeleted(id) && !pendingWrite(snap, id) {
			continue
		}
		out = append(out, candidate{id: id})
	}

	limit := deps.FetchLimit
	if limit <= 0 {
		limit = 8
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range out {
		c := &out[i]
		if deps.Cache != nil {
			if _, ok := deps.Cache.Get(c.id); ok {
				c.triples = deps.Cache.Triples(c.id)
				c.relations = deps.Cache.Relations(c.id)
				continue
			}
		}
		if deps.Remote == nil {
			continue
		}
		g.Go(func() error {
			triples, relations, err := fetch(gctx, deps.Remote, c.id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("Using local state only", "id", c.id, "error", err)
				return nil
			}
			c.triples, c.relations = triples, relations
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "table", "MergeEntities", "fetch local-only entities")
	}
	return out, nil
}

// pendingWrite reports whether id has an unpublished local SET.
func pendingWrite(snap *localstore.Snapshot, id string) bool {
	for _, op := range snap.TriplesFor(id) {
		if !op.HasBeenPublished && !op.IsDeleted {
			return true
		}
	}
	for _, op := range snap.RelationsFrom(id) {
		if !op.HasBeenPublished && !op.IsDeleted {
			return true
		}
	}
	return false
}

func fetch(ctx context.Context, src remote.Source, id string) ([]graph.Triple, []graph.Relation, error) {
	var (
		triples   []graph.Triple
		relations []graph.Relation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		triples, err = src.FetchTriples(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		relations, err = src.FetchRelations(gctx, id)
		return err
	})
	return triples, relations, g.Wait()
}

// cacheFacts keeps a nil cache from becoming a non-nil interface.
func cacheFacts(c *readcache.Cache) merge.Facts {
	if c == nil {
		return nil
	}
	return c
}

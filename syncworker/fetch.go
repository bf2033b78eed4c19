package syncworker

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/remote"
)

// SyncEntity fetches id into the read cache and reports SYNC_SUCCESS or
// SYNC_ERROR. Entities its relations point at are then fetched in the
// background. It returns the error it reported, if any.
func (w *Worker) SyncEntity(ctx context.Context, id string) error {
	w.setState(id, StateFetching)
	return w.sync(ctx, id, 0)
}

// SyncMultipleEntities syncs every id concurrently, then reports
// MULTIPLE_SYNC_COMPLETE. Each id gets its own terminal event whatever
// happens to the others. The returned error joins the per-id failures.
func (w *Worker) SyncMultipleEntities(ctx context.Context, ids []string) error {
	ids = unique(ids)

	var g errgroup.Group
	g.SetLimit(w.cfg.Workers)
	errs := make([]error, len(ids))
	for i, id := range ids {
		w.setState(id, StateFetching)
		g.Go(func() error {
			errs[i] = w.sync(ctx, id, 0)
			return nil
		})
	}
	_ = g.Wait()

	w.emit(Event{Type: EvtMultipleSyncComplete, IDs: ids})
	return stderrors.Join(errs...)
}

// sync runs one fetch. The caller has already moved id to FETCHING.
func (w *Worker) sync(ctx context.Context, id string, depth int) error {
	start := time.Now()
	version := w.store.Version()
	logger := w.logger.With("entity", id)

	if w.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.FetchTimeout)
		defer cancel()
	}

	deleted, err := w.remote.IsDeleted(ctx, id)
	if err != nil {
		return w.syncFailed(id, start, err)
	}
	if deleted {
		w.cache.MarkDeleted(id, version)
		w.setState(id, StateDeleted)
		w.observeSync("deleted", start)
		logger.Debug("Entity deleted remotely")
		w.emit(Event{Type: EvtSyncSuccess, ID: id, Deleted: true})
		return nil
	}

	var (
		header    *remote.EntityPayload
		triples   []graph.Triple
		relations []graph.Relation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		header, err = w.remote.FetchEntity(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		triples, err = w.remote.FetchTriples(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		relations, err = w.remote.FetchRelations(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return w.syncFailed(id, start, err)
	}

	var name *string
	if header != nil {
		name = header.Name
	}
	w.cache.PutEntity(id, name, triples, relations, version)
	w.setState(id, StateSynced)
	w.observeSync("synced", start)
	logger.Debug("Entity synced", "triples", len(triples), "relations", len(relations))
	w.emit(Event{Type: EvtSyncSuccess, ID: id, Data: &EntityData{
		Entity:    header,
		Triples:   triples,
		Relations: relations,
	}})

	w.fanOut(id, relations, depth+1)
	return nil
}

func (w *Worker) syncFailed(id string, start time.Time, err error) error {
	if !errors.IsInvalid(err) && !errors.IsFatal(err) {
		err = errors.WrapTransient(err, "syncworker", "SyncEntity", "fetch "+id)
	}
	w.setState(id, StateError)
	w.observeSync("error", start)
	w.logger.Warn("Entity sync failed", "entity", id, "error", err)
	w.emit(Event{Type: EvtSyncError, ID: id, Error: NewEventError(err)})
	return err
}

func (w *Worker) observeSync(result string, start time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.SyncsTotal.WithLabelValues(result).Inc()
	w.metrics.SyncDuration.Observe(time.Since(start).Seconds())
}

// fanOut starts background syncs for the targets and types of relations
// that are not already fetching or fetched.
func (w *Worker) fanOut(from string, relations []graph.Relation, depth int) {
	if (w.cfg.MaxDepth > 0 && depth > w.cfg.MaxDepth) || w.bg.Err() != nil {
		return
	}

	var targets []string
	for _, r := range relations {
		targets = append(targets, r.ToEntity.ID, r.TypeOf.ID)
	}
	for _, id := range unique(targets) {
		if id == "" || id == from {
			continue
		}
		if !w.claim(id) {
			if w.metrics != nil {
				w.metrics.FanoutSkipped.Inc()
			}
			continue
		}
		if w.metrics != nil {
			w.metrics.FanoutSpawned.Inc()
		}

		w.bgWG.Add(1)
		go func() {
			defer w.bgWG.Done()
			if err := w.limiter.Wait(w.bg); err != nil {
				// Shutting down; leave the id fetchable by a later request.
				w.setState(id, StateUnknown)
				return
			}
			_ = w.sync(w.bg, id, depth)
		}()
	}
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

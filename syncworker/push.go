package syncworker

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/remote"
)

// SaveEntity pushes an entity header with its facts.
func (w *Worker) SaveEntity(ctx context.Context, e remote.EntityPayload) error {
	err := w.push(ctx, DataEntity, func(ctx context.Context) error {
		return w.remote.PushEntity(ctx, e)
	})
	if err != nil {
		return w.saveFailed(e.ID, DataEntity, err)
	}
	version := w.store.Version()
	for _, t := range e.Triples {
		w.cache.PutTriple(t, false, version)
	}
	for _, r := range e.Relations {
		w.cache.PutRelation(r, false, version)
	}
	w.emit(Event{Type: EvtSaveSuccess, ID: e.ID, DataType: DataEntity})
	return nil
}

// SaveTriple pushes one triple write or delete.
func (w *Worker) SaveTriple(ctx context.Context, c remote.TripleChange) error {
	return w.saveTriple(ctx, c)
}

// saveTriple records the push in the cache at the store version current when
// the remote acknowledged it. Fetches that started earlier keep the pushed
// value; MarkPublished moves the version on for the ones after.
func (w *Worker) saveTriple(ctx context.Context, c remote.TripleChange) error {
	key := c.Triple.Key()
	err := w.push(ctx, DataTriple, func(ctx context.Context) error {
		return w.remote.PushTriple(ctx, c)
	})
	if err != nil {
		return w.saveFailed(key, DataTriple, err)
	}
	w.cache.PutTriple(c.Triple, c.Deleted, w.store.Version())
	w.emit(Event{Type: EvtSaveSuccess, ID: key, DataType: DataTriple})
	return nil
}

// SaveRelation pushes one relation write or delete.
func (w *Worker) SaveRelation(ctx context.Context, c remote.RelationChange) error {
	return w.saveRelation(ctx, c)
}

func (w *Worker) saveRelation(ctx context.Context, c remote.RelationChange) error {
	key := c.Relation.Key()
	err := w.push(ctx, DataRelation, func(ctx context.Context) error {
		return w.remote.PushRelation(ctx, c)
	})
	if err != nil {
		return w.saveFailed(key, DataRelation, err)
	}
	w.cache.PutRelation(c.Relation, c.Deleted, w.store.Version())
	w.emit(Event{Type: EvtSaveSuccess, ID: key, DataType: DataRelation})
	return nil
}

// DeleteEntity pushes the deletion of id and reports DELETE_SUCCESS or
// DELETE_ERROR. The local store is not touched either way.
func (w *Worker) DeleteEntity(ctx context.Context, id string) error {
	err := w.push(ctx, "delete", func(ctx context.Context) error {
		return w.remote.PushDelete(ctx, id)
	})
	if err != nil {
		err = classify(err, "DeleteEntity", id)
		w.logger.Warn("Entity delete failed", "entity", id, "error", err)
		w.emit(Event{Type: EvtDeleteError, ID: id, Error: NewEventError(err)})
		return err
	}
	w.cache.PutDelete(id, w.store.Version())
	w.setState(id, StateDeleted)
	w.emit(Event{Type: EvtDeleteSuccess, ID: id})
	return nil
}

// SyncPendingChanges pushes every unpublished local entry, tombstones
// included. Each successful push marks its entry published unless it was
// edited again meanwhile. It returns the number of entries marked and the
// joined push failures.
func (w *Worker) SyncPendingChanges(ctx context.Context) (int, error) {
	triples, relations := w.store.Snapshot().Pending()
	if len(triples)+len(relations) == 0 {
		return 0, nil
	}
	w.logger.Info("Publishing pending changes", "triples", len(triples), "relations", len(relations))

	var (
		g         errgroup.Group
		published atomic.Int64
	)
	g.SetLimit(w.cfg.Workers)
	errs := make([]error, len(triples)+len(relations))

	for i, op := range triples {
		g.Go(func() error {
			c := remote.TripleChange{Triple: op.Triple, Deleted: op.IsDeleted}
			if errs[i] = w.saveTriple(ctx, c); errs[i] == nil {
				published.Add(int64(w.markPublished(op.Meta)))
			}
			return nil
		})
	}
	for i, op := range relations {
		g.Go(func() error {
			c := remote.RelationChange{Relation: op.Relation, Deleted: op.IsDeleted}
			if errs[len(triples)+i] = w.saveRelation(ctx, c); errs[len(triples)+i] == nil {
				published.Add(int64(w.markPublished(op.Meta)))
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(published.Load()), stderrors.Join(errs...)
}

func (w *Worker) markPublished(m localstore.Meta) int {
	return w.store.MarkPublished(localstore.VersionedKey{Key: m.CompositeKey, Version: m.Version})
}

// push runs fn on a context that keeps ctx's values but ignores its
// cancellation.
func (w *Worker) push(ctx context.Context, kind string, fn func(context.Context) error) error {
	err := fn(context.WithoutCancel(ctx))
	if w.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		w.metrics.PushesTotal.WithLabelValues(kind, result).Inc()
	}
	return err
}

func (w *Worker) saveFailed(id, dataType string, err error) error {
	err = classify(err, "Save", id)
	w.logger.Warn("Save failed", "id", id, "dataType", dataType, "error", err)
	w.emit(Event{Type: EvtSaveError, ID: id, DataType: dataType, Error: NewEventError(err)})
	return err
}

func classify(err error, method, id string) error {
	if errors.IsInvalid(err) || errors.IsFatal(err) || errors.IsTransient(err) {
		return err
	}
	return errors.WrapTransient(err, "syncworker", method, "push "+id)
}

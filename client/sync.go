package client

import (
	"context"
	"reflect"
	"sync"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/remote"
	"github.com/c360/graphsync/syncworker"
	"github.com/c360/graphsync/table"
)

// RequestSync queues a background fetch of ids. Results arrive as events.
func (c *Client) RequestSync(ids ...string) error {
	if len(ids) == 1 {
		return c.worker.Submit(syncworker.Command{Type: syncworker.CmdSyncEntity, ID: ids[0]})
	}
	return c.worker.Submit(syncworker.Command{Type: syncworker.CmdSyncMultiple, IDs: ids})
}

// Publish queues a push of every unpublished local entry.
func (c *Client) Publish() error {
	return c.worker.Submit(syncworker.Command{Type: syncworker.CmdSyncPendingChanges})
}

// DeleteRemote queues a remote delete of id.
func (c *Client) DeleteRemote(id string) error {
	return c.worker.Submit(syncworker.Command{Type: syncworker.CmdDeleteEntity, ID: id})
}

// OnEvent registers fn for every worker event. fn runs on worker goroutines.
func (c *Client) OnEvent(fn func(syncworker.Event)) {
	c.worker.AddSink(fn)
}

// PruneSynced drops published local entries that the read cache already
// reflects, so the remote state alone yields the same view. It returns the
// number of entries dropped.
func (c *Client) PruneSynced() int {
	n := c.store.Prune(func(m localstore.Meta) bool {
		if !m.HasBeenPublished {
			return false
		}
		return c.reflected(m)
	})
	if n > 0 {
		c.logger.Debug("Pruned synced local entries", "count", n)
	}
	return n
}

func (c *Client) reflected(m localstore.Meta) bool {
	snap := c.store.Snapshot()
	if op, ok := snap.Triple(m.CompositeKey); ok {
		for _, t := range c.cache.Triples(op.EntityID) {
			if t.Key() == m.CompositeKey {
				return !op.IsDeleted && t.Value == op.Value
			}
		}
		return op.IsDeleted
	}
	if op, ok := snap.Relation(m.CompositeKey); ok {
		for _, r := range c.cache.Relations(op.FromEntity.ID) {
			if r.Key() == m.CompositeKey {
				return !op.IsDeleted && r.Index == op.Index && r.ToEntity.ID == op.ToEntity.ID
			}
		}
		return op.IsDeleted
	}
	return false
}

// Table lists entities for q with local edits applied. Without a querying
// remote only locally known entities are listed.
func (c *Client) Table(ctx context.Context, q table.Query) ([]graph.Entity, error) {
	querier, _ := c.remote.(remote.Querier)
	return table.MergeEntities(ctx, q, table.Dependencies{
		Remote:  querier,
		Store:   c.store,
		Cache:   c.cache,
		Logger:  c.logger,
		Metrics: c.metrics,
	})
}

// Watch calls fn with id's projection whenever a local write or a cache
// update changes it, and once immediately. Call the returned function to
// stop watching.
func (c *Client) Watch(id string, fn func(graph.Entity)) (cancel func()) {
	var (
		mu   sync.Mutex
		last graph.Entity
		init bool
	)
	check := func() {
		e := c.Entity(id)
		mu.Lock()
		changed := !init || !reflect.DeepEqual(e, last)
		last, init = e, true
		mu.Unlock()
		if changed {
			fn(e)
		}
	}

	check()
	stopStore := c.store.Subscribe(func(*localstore.Snapshot) { check() })
	stopCache := c.cache.Subscribe(func(changed string) {
		if changed == id {
			check()
		}
	})
	return func() {
		stopStore()
		stopCache()
	}
}

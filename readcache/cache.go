// Package readcache holds the last known remote state of each entity.
//
// Only the sync worker writes it; readers merge it with the local op store.
// Every write carries a local store version: a fetch the one it started at,
// a push the one current when the remote acknowledged it. A fetch keeps any
// fact pushed at or after its own version, and a write older than what was
// already applied is dropped. This keeps a slow fetch from overwriting the
// result of a push, whatever order the network delivers them in.
//
// Entries are immutable. A write replaces the entry for its entity, so a
// reader holding an *Entry never sees it change.
package readcache

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/pkg/cache"
)

// DefaultSize is the number of entities kept when no size is configured.
const DefaultSize = 10000

// Entry is the cached remote view of one entity.
type Entry struct {
	ID        string
	Name      *string
	Deleted   bool
	Triples   []graph.Triple
	Relations []graph.Relation

	// Version is the local store version the last accepted fetch started at.
	Version uint64

	// marks records pushes applied per fact key, tombstones included.
	marks map[string]mark

	// pushedDelete is set when Deleted came from a local delete push.
	pushedDelete bool
}

type mark struct {
	version uint64
	deleted bool
}

// Cache is the remote read cache.
type Cache struct {
	entries cache.Cache[*Entry]
	version atomic.Uint64

	subsMu  sync.RWMutex
	subs    map[int]func(id string)
	nextSub int

	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures a Cache.
type Option func(*config)

type config struct {
	size     int
	logger   *slog.Logger
	metrics  *metric.Metrics
	registry *metric.MetricsRegistry
}

// WithSize bounds the number of cached entities.
func WithSize(n int) Option {
	return func(c *config) { c.size = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics counts rejected stale writes in m and exports cache statistics
// through registry. Either may be nil.
func WithMetrics(m *metric.Metrics, registry *metric.MetricsRegistry) Option {
	return func(c *config) {
		c.metrics = m
		c.registry = registry
	}
}

// New creates an empty cache.
func New(opts ...Option) (*Cache, error) {
	cfg := config{size: DefaultSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.size <= 0 {
		cfg.size = DefaultSize
	}

	c := &Cache{
		subs:    make(map[int]func(string)),
		logger:  cfg.logger.With("component", "readcache"),
		metrics: cfg.metrics,
	}
	entries, err := cache.NewLRU(cfg.size,
		cache.WithMetrics[*Entry](cfg.registry, "readcache"),
		cache.WithEvictionCallback(func(id string, _ *Entry) {
			c.logger.Debug("Evicted cached entity", "entity", id)
		}),
	)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Version increases on every accepted write.
func (c *Cache) Version() uint64 {
	return c.version.Load()
}

// Get returns the cached entry for id.
func (c *Cache) Get(id string) (*Entry, bool) {
	if id == "" {
		return nil, false
	}
	return c.entries.Get(id)
}

// Triples returns the cached remote triples of id, nil when unknown or
// deleted.
func (c *Cache) Triples(id string) []graph.Triple {
	e, ok := c.Get(id)
	if !ok || e.Deleted {
		return nil
	}
	return e.Triples
}

// Relations returns the cached remote relations from id.
func (c *Cache) Relations(id string) []graph.Relation {
	e, ok := c.Get(id)
	if !ok || e.Deleted {
		return nil
	}
	return e.Relations
}

// IsDeleted reports whether the remote was last seen with id deleted.
func (c *Cache) IsDeleted(id string) bool {
	e, ok := c.Get(id)
	return ok && e.Deleted
}

// EntityIDs lists the cached entities in sorted order.
func (c *Cache) EntityIDs() []string {
	ids := c.entries.Keys()
	sort.Strings(ids)
	return ids
}

// Subscribe calls fn with the entity id after every accepted write.
func (c *Cache) Subscribe(fn func(id string)) (cancel func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

// PutEntity replaces the remote view of id with a fetch result that started
// at version. It is rejected when a fetch that started later was already
// applied, or when a delete pushed at or after version is still recorded.
// Facts pushed at or after version survive the replace.
func (c *Cache) PutEntity(id string, name *string, triples []graph.Triple, relations []graph.Relation, version uint64) bool {
	return c.update(id, func(old *Entry) (*Entry, bool) {
		if old != nil && version < old.Version {
			return nil, false
		}
		if old != nil && old.pushedDelete && version <= old.Version {
			return nil, false
		}
		next := &Entry{ID: id, Name: name, Version: version}
		if old != nil {
			next.marks = old.marks
		}
		next.Triples = overlay(triples, old, version, graph.Triple.Key, func(e *Entry) []graph.Triple { return e.Triples })
		next.Relations = overlay(relations, old, version, graph.Relation.Key, func(e *Entry) []graph.Relation { return e.Relations })
		return next, true
	})
}

// MarkDeleted records that the remote reported id deleted.
func (c *Cache) MarkDeleted(id string, version uint64) bool {
	return c.update(id, func(old *Entry) (*Entry, bool) {
		if old != nil && version < old.Version {
			return nil, false
		}
		return &Entry{ID: id, Deleted: true, Version: version}, true
	})
}

// PutDelete applies a pushed delete of id. Unlike MarkDeleted, a fetch that
// started at the same version cannot bring the entity back.
func (c *Cache) PutDelete(id string, version uint64) bool {
	return c.update(id, func(old *Entry) (*Entry, bool) {
		if old != nil && version < old.Version {
			return nil, false
		}
		return &Entry{ID: id, Deleted: true, Version: version, pushedDelete: true}, true
	})
}

// PutTriple applies a pushed triple. A deleted triple is removed from the
// entry. The push is rejected if a later push of the same key was applied.
func (c *Cache) PutTriple(t graph.Triple, deleted bool, version uint64) bool {
	key := t.Key()
	return c.update(t.EntityID, func(old *Entry) (*Entry, bool) {
		next, ok := markFact(old, t.EntityID, key, deleted, version)
		if !ok {
			return nil, false
		}
		next.Triples = replaceByKey(next.Triples, t, deleted, graph.Triple.Key)
		return next, true
	})
}

// PutRelation applies a pushed relation to its source entity.
func (c *Cache) PutRelation(r graph.Relation, deleted bool, version uint64) bool {
	key := r.Key()
	return c.update(r.FromEntity.ID, func(old *Entry) (*Entry, bool) {
		next, ok := markFact(old, r.FromEntity.ID, key, deleted, version)
		if !ok {
			return nil, false
		}
		next.Relations = replaceByKey(next.Relations, r, deleted, graph.Relation.Key)
		return next, true
	})
}

// Forget drops id from the cache.
func (c *Cache) Forget(id string) {
	if ok, _ := c.entries.Delete(id); ok {
		c.version.Add(1)
		c.notify(id)
	}
}

func (c *Cache) update(id string, fn func(old *Entry) (*Entry, bool)) bool {
	if id == "" {
		return false
	}
	accepted := false
	_, err := c.entries.Compute(id, func(old *Entry, present bool) (*Entry, bool) {
		if !present {
			old = nil
		}
		next, ok := fn(old)
		accepted = ok
		return next, ok
	})
	if err != nil {
		c.logger.Warn("Read cache write failed", "entity", id, "error", err)
		return false
	}
	if !accepted {
		c.logger.Debug("Dropped stale read cache write", "entity", id)
		if c.metrics != nil {
			c.metrics.CacheRejected.Inc()
		}
		return false
	}
	c.version.Add(1)
	c.notify(id)
	return true
}

func (c *Cache) notify(id string) {
	c.subsMu.RLock()
	subs := make([]func(string), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.RUnlock()

	for _, fn := range subs {
		fn(id)
	}
}

// markFact copies old and records a push of key, or reports false when a
// later push of the same key already landed.
func markFact(old *Entry, id, key string, deleted bool, version uint64) (*Entry, bool) {
	if old == nil {
		old = &Entry{ID: id}
	}
	if m, ok := old.marks[key]; ok && version < m.version {
		return nil, false
	}
	next := *old
	if !deleted {
		// A pushed fact means the entity exists again.
		next.Deleted = false
		next.pushedDelete = false
	}
	next.marks = make(map[string]mark, len(old.marks)+1)
	for k, m := range old.marks {
		next.marks[k] = m
	}
	next.marks[key] = mark{version: version, deleted: deleted}
	return &next, true
}

// overlay returns fetched with every fact pushed at or after version taken
// from old instead. A push recorded at version landed before the store moved
// past it, so the fetch may have read the remote before the push arrived.
func overlay[F any](fetched []F, old *Entry, version uint64, key func(F) string, facts func(*Entry) []F) []F {
	if old == nil || len(old.marks) == 0 {
		return fetched
	}
	newer := make(map[string]bool)
	for k, m := range old.marks {
		if m.version >= version {
			newer[k] = true
		}
	}
	if len(newer) == 0 {
		return fetched
	}

	out := make([]F, 0, len(fetched))
	for _, f := range fetched {
		if !newer[key(f)] {
			out = append(out, f)
		}
	}
	for _, f := range facts(old) {
		if newer[key(f)] {
			out = append(out, f)
		}
	}
	return out
}

func replaceByKey[F any](facts []F, f F, deleted bool, key func(F) string) []F {
	k := key(f)
	out := make([]F, 0, len(facts)+1)
	for _, existing := range facts {
		if key(existing) != k {
			out = append(out, existing)
		}
	}
	if !deleted {
		out = append(out, f)
	}
	return out
}

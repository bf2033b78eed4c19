package cache

import (
	"container/list"
	"sync"

	"github.com/c360/graphsync/errors"
)

type lruEntry[V any] struct {
	key   string
	value V
}

// lruCache evicts the least recently used entry once maxSize is exceeded.
// maxSize 0 disables eviction.
type lruCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

func newLRUCache[V any](maxSize int, opts *cacheOptions[V]) (*lruCache[V], error) {
	var metrics *cacheMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "newLRUCache", "metrics registration")
		}
	}

	return &lruCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: opts.evictCallback,
	}, nil
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.miss()
		c.metrics.record("miss")
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.hit()
	c.metrics.record("hit")
	return el.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store(key, value), nil
}

func (c *lruCache[V]) Compute(key string, fn func(old V, present bool) (V, bool)) (V, error) {
	var zero V
	if err := validateKey(key); err != nil {
		return zero, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var old V
	el, present := c.items[key]
	if present {
		old = el.Value.(*lruEntry[V]).value
	}
	next, keep := fn(old, present)
	if !keep {
		return old, nil
	}
	c.store(key, next)
	return next, nil
}

// store must be called with mu held.
func (c *lruCache[V]) store(key string, value V) bool {
	c.stats.set()
	c.metrics.record("set")

	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(el)
		return false
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
	if c.maxSize > 0 && len(c.items) > c.maxSize {
		c.evictOldest()
	}
	c.stats.updateSize(len(c.items))
	c.metrics.updateSize(len(c.items))
	return true
}

func (c *lruCache[V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*lruEntry[V])
	c.order.Remove(el)
	delete(c.items, entry.key)
	c.stats.eviction()
	c.metrics.record("eviction")
	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.order.Remove(el)
	delete(c.items, key)
	c.stats.delete()
	c.metrics.record("delete")
	c.stats.updateSize(len(c.items))
	c.metrics.updateSize(len(c.items))
	return true, nil
}

func (c *lruCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.stats.updateSize(0)
	c.metrics.updateSize(0)
	return nil
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns keys from most to least recently used.
func (c *lruCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*lruEntry[V]).key)
	}
	return keys
}

func (c *lruCache[V]) Stats() *Statistics {
	return c.stats
}

func (c *lruCache[V]) Close() error {
	return c.Clear()
}

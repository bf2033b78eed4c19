// Package client is the single entry point an application embeds. A Client
// owns one local op store, one remote read cache and one sync worker; there
// is no package-level state, so tests and multi-tenant hosts build as many
// independent clients as they need.
//
// Reads are synchronous and never touch the network: they merge the store's
// current snapshot over whatever the cache holds. Writes go to the store.
// Remote work is requested with RequestSync and Publish and runs on the
// worker once Run has started it.
package client

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/readcache"
	"github.com/c360/graphsync/remote"
	"github.com/c360/graphsync/storage"
	"github.com/c360/graphsync/syncworker"
)

// Dependencies configures a Client.
type Dependencies struct {
	// Remote is required. If it also implements remote.Querier, Table
	// includes remote pages.
	Remote remote.Source

	// Space is the default space for writes that do not name one.
	Space string

	// OpLog persists the local store. Nil keeps it in memory only.
	OpLog         storage.OpLog
	FlushInterval time.Duration

	Sync      syncworker.Config
	CacheSize int

	Logger   *slog.Logger
	Registry *metric.MetricsRegistry

	// NewID mints ids for new relations. Defaults to random UUIDs.
	NewID func() string
}

// Client is an owned graph sync instance.
type Client struct {
	space   string
	remote  remote.Source
	store   *localstore.Store
	cache   *readcache.Cache
	worker  *syncworker.Worker
	logger  *slog.Logger
	metrics *metric.Metrics
	newID   func() string
}

// New builds a client. Call Run to start background sync and Close when done.
func New(deps Dependencies) (*Client, error) {
	if deps.Remote == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "client", "New", "remote is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var m *metric.Metrics
	if deps.Registry != nil {
		m = deps.Registry.Metrics
	}

	storeOpts := []localstore.Option{localstore.WithLogger(logger), localstore.WithMetrics(m)}
	if deps.OpLog != nil {
		storeOpts = append(storeOpts, localstore.WithPersister(deps.OpLog, deps.FlushInterval))
	}
	store := localstore.New(storeOpts...)

	cacheOpts := []readcache.Option{readcache.WithLogger(logger)}
	if deps.CacheSize > 0 {
		cacheOpts = append(cacheOpts, readcache.WithSize(deps.CacheSize))
	}
	if deps.Registry != nil {
		cacheOpts = append(cacheOpts, readcache.WithMetrics(m, deps.Registry))
	}
	cache, err := readcache.New(cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "client", "New", "create read cache")
	}

	w, err := syncworker.New(deps.Sync, syncworker.Dependencies{
		Remote:   deps.Remote,
		Store:    store,
		Cache:    cache,
		Logger:   logger,
		Metrics:  m,
		Registry: deps.Registry,
	})
	if err != nil {
		return nil, errors.Wrap(err, "client", "New", "create sync worker")
	}

	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Client{
		space:   deps.Space,
		remote:  deps.Remote,
		store:   store,
		cache:   cache,
		worker:  w,
		logger:  logger.With("component", "client"),
		metrics: m,
		newID:   newID,
	}, nil
}

// Start restores persisted local state and starts the sync worker.
func (c *Client) Start(ctx context.Context) error {
	if err := c.store.Load(ctx); err != nil {
		return errors.Wrap(err, "client", "Start", "load local store")
	}
	return c.worker.Start(ctx)
}

// Run starts the client and blocks until ctx ends, then stops the worker.
// The store stays open; call Close to flush it.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	c.logger.Info("Client running", "space", c.space)
	<-ctx.Done()
	return c.worker.Stop()
}

// Close stops the worker and flushes and closes the store.
func (c *Client) Close(ctx context.Context) error {
	return stderrors.Join(c.worker.Stop(), c.store.Close(ctx))
}

// Store exposes the local op store.
func (c *Client) Store() *localstore.Store { return c.store }

// Cache exposes the remote read cache.
func (c *Client) Cache() *readcache.Cache { return c.cache }

// Worker exposes the sync worker, for hosts that bridge its command surface.
func (c *Client) Worker() *syncworker.Worker { return c.worker }

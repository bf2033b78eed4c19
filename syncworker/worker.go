// Package syncworker reconciles the local graph with the remote off the
// caller's goroutine.
//
// Fetches pull an entity's header, triples and relations concurrently into
// the read cache and then prefetch every entity the relations point at.
// Pushes send local changes and, on success, update the read cache and mark
// the local entries published. Every operation reports exactly one terminal
// event for its id; a failure never affects sibling ids in the same batch.
//
// Fetches stop when their context ends. Pushes do not: once a push has been
// sent the worker waits for its result, and a newer local edit is simply
// carried by the next push.
package syncworker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/pkg/worker"
	"github.com/c360/graphsync/readcache"
	"github.com/c360/graphsync/remote"
)

// Dependencies are the collaborators a Worker needs.
type Dependencies struct {
	Remote   remote.Source
	Store    *localstore.Store
	Cache    *readcache.Cache
	Logger   *slog.Logger
	Metrics  *metric.Metrics
	Registry *metric.MetricsRegistry
}

// Worker runs fetches and pushes against a remote.
type Worker struct {
	cfg     Config
	remote  remote.Source
	store   *localstore.Store
	cache   *readcache.Cache
	logger  *slog.Logger
	metrics *metric.Metrics

	pool    *worker.Pool[Command]
	limiter *rate.Limiter

	statesMu sync.Mutex
	states   map[string]State

	sinksMu sync.RWMutex
	sinks   []func(Event)

	events       chan Event
	eventsWanted atomic.Bool
	eventsMu     sync.RWMutex
	eventsClosed bool

	// bg scopes fan-out syncs; cancelled by Stop.
	bg       context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New creates a worker. Call Start or Run before Submit.
func New(cfg Config, deps Dependencies) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "syncworker", "New", "validate config")
	}
	if deps.Remote == nil || deps.Store == nil || deps.Cache == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "syncworker", "New", "remote, store and cache are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.FanoutRate > 0 {
		limit = rate.Limit(cfg.FanoutRate)
	}

	w := &Worker{
		cfg:     cfg,
		remote:  deps.Remote,
		store:   deps.Store,
		cache:   deps.Cache,
		logger:  logger.With("component", "syncworker"),
		metrics: deps.Metrics,
		limiter: rate.NewLimiter(limit, cfg.FanoutBurst),
		states:  make(map[string]State),
		events:  make(chan Event, cfg.EventBuffer),
	}
	w.bg, w.bgCancel = context.WithCancel(context.Background())

	var poolOpts []worker.Option[Command]
	if deps.Registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[Command](deps.Registry, "syncworker"))
	}
	poolOpts = append(poolOpts, worker.WithErrorHandler(func(cmd Command, err error) {
		w.logger.Debug("Command failed", "type", cmd.Type, "id", cmd.ID, "error", err)
	}))
	w.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, w.dispatch, poolOpts...)
	return w, nil
}

// Start launches the command workers.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "syncworker", "Start", "start pool")
	}
	w.logger.Info("Sync worker started", "workers", w.cfg.Workers)
	return nil
}

// Stop drains queued commands, cancels background fan-out and closes the
// Events channel.
func (w *Worker) Stop() error {
	err := w.pool.Stop(w.cfg.StopTimeout)
	w.bgCancel()
	w.bgWG.Wait()

	w.eventsMu.Lock()
	if !w.eventsClosed {
		w.eventsClosed = true
		close(w.events)
	}
	w.eventsMu.Unlock()

	if err != nil {
		return errors.Wrap(err, "syncworker", "Stop", "stop pool")
	}
	w.logger.Info("Sync worker stopped")
	return nil
}

// Run starts the worker and stops it when ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

// Submit validates cmd and queues it without blocking.
func (w *Worker) Submit(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := w.pool.Submit(cmd); err != nil {
		return errors.WrapTransient(err, "syncworker", "Submit", "queue command")
	}
	return nil
}

// Events returns the event stream. Once called, the stream must be drained:
// the worker blocks on a full buffer rather than drop a terminal event.
func (w *Worker) Events() <-chan Event {
	w.eventsWanted.Store(true)
	return w.events
}

// AddSink registers fn to be called synchronously with every event.
func (w *Worker) AddSink(fn func(Event)) {
	w.sinksMu.Lock()
	defer w.sinksMu.Unlock()
	w.sinks = append(w.sinks, fn)
}

// State returns the sync state of id.
func (w *Worker) State(id string) State {
	w.statesMu.Lock()
	defer w.statesMu.Unlock()
	if s, ok := w.states[id]; ok {
		return s
	}
	return StateUnknown
}

func (w *Worker) setState(id string, s State) {
	w.statesMu.Lock()
	w.states[id] = s
	w.statesMu.Unlock()
}

// claim moves id to FETCHING unless it is already fetching or fetched.
func (w *Worker) claim(id string) bool {
	w.statesMu.Lock()
	defer w.statesMu.Unlock()
	switch w.states[id] {
	case StateFetching, StateSynced, StateDeleted:
		return false
	}
	w.states[id] = StateFetching
	return true
}

func (w *Worker) emit(e Event) {
	if w.metrics != nil {
		w.metrics.EventsEmitted.WithLabelValues(string(e.Type)).Inc()
	}

	w.sinksMu.RLock()
	sinks := w.sinks
	w.sinksMu.RUnlock()
	for _, fn := range sinks {
		fn(e)
	}

	if !w.eventsWanted.Load() {
		return
	}
	w.eventsMu.RLock()
	defer w.eventsMu.RUnlock()
	if w.eventsClosed {
		return
	}
	select {
	case w.events <- e:
	case <-w.bg.Done():
		w.logger.Warn("Dropped event during shutdown", "type", e.Type, "id", e.ID)
	}
}

func (w *Worker) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CmdSyncEntity:
		return w.SyncEntity(ctx, cmd.ID)
	case CmdSyncMultiple:
		return w.SyncMultipleEntities(ctx, cmd.IDs)
	case CmdSyncPendingChanges:
		_, err := w.SyncPendingChanges(ctx)
		return err
	case CmdSaveEntity:
		return w.SaveEntity(ctx, *cmd.Entity)
	case CmdSaveTriple:
		return w.SaveTriple(ctx, remote.TripleChange{Triple: *cmd.Triple, Deleted: cmd.Deleted})
	case CmdSaveRelation:
		return w.SaveRelation(ctx, remote.RelationChange{Relation: *cmd.Relation, Deleted: cmd.Deleted})
	case CmdDeleteEntity:
		return w.DeleteEntity(ctx, cmd.ID)
	}
	return cmd.Validate()
}

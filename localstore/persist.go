package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/storage"
)

// persister writes store changes to an OpLog off the writer's goroutine.
// Changes are coalesced by key: only the latest state of a key is written,
// in order of first appearance since the last flush.
type persister struct {
	log      storage.OpLog
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	flushMu sync.Mutex
	pending map[string]pendingWrite
	order   []string
	replace []storage.Record
	hasRepl bool

	kick   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

type pendingWrite struct {
	rec    storage.Record
	delete bool
}

func newPersister(log storage.OpLog, interval time.Duration, logger *slog.Logger) *persister {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	p := &persister{
		log:      log,
		logger:   logger,
		interval: interval,
		pending:  make(map[string]pendingWrite),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		case <-p.kick:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*p.interval+5*time.Second)
		if err := p.flush(ctx); err != nil {
			p.logger.Warn("Persisting local ops failed, will retry", "error", err)
		}
		cancel()
	}
}

func recordFor(snap *Snapshot, c changedKey) (storage.Record, error) {
	var (
		data []byte
		err  error
		kind = storage.KindTriple
	)
	if c.relation {
		kind = storage.KindRelation
		op := snap.relations[c.key]
		data, err = json.Marshal(op)
	} else {
		op := snap.triples[c.key]
		data, err = json.Marshal(op)
	}
	return storage.Record{Key: c.key, Kind: kind, Data: data}, err
}

// enqueue is called with the store lock held, so snapshots arrive in order.
func (p *persister) enqueue(snap *Snapshot, changed []changedKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range changed {
		w := pendingWrite{delete: c.deleted, rec: storage.Record{Key: c.key}}
		if !c.deleted {
			rec, err := recordFor(snap, c)
			if err != nil {
				p.logger.Error("Encoding local op failed", "key", c.key, "error", err)
				continue
			}
			w.rec = rec
		}
		if _, seen := p.pending[c.key]; !seen {
			p.order = append(p.order, c.key)
		}
		p.pending[c.key] = w
	}
	p.signal()
}

func (p *persister) enqueueReplace(snap *Snapshot) {
	recs := make([]storage.Record, 0, len(snap.triples)+len(snap.relations))
	for key := range snap.triples {
		if rec, err := recordFor(snap, changedKey{key: key}); err == nil {
			recs = append(recs, rec)
		}
	}
	for key := range snap.relations {
		if rec, err := recordFor(snap, changedKey{key: key, relation: true}); err == nil {
			recs = append(recs, rec)
		}
	}

	p.mu.Lock()
	p.replace = recs
	p.hasRepl = true
	p.pending = make(map[string]pendingWrite)
	p.order = nil
	p.mu.Unlock()
	p.signal()
}

func (p *persister) signal() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *persister) take() (replace []storage.Record, hasRepl bool, writes []pendingWrite) {
	p.mu.Lock()
	defer p.mu.Unlock()

	replace, hasRepl = p.replace, p.hasRepl
	p.replace, p.hasRepl = nil, false

	writes = make([]pendingWrite, 0, len(p.order))
	for _, key := range p.order {
		writes = append(writes, p.pending[key])
	}
	p.pending = make(map[string]pendingWrite)
	p.order = nil
	return replace, hasRepl, writes
}

// requeue puts failed writes back unless a newer write for the key arrived.
func (p *persister) requeue(replace []storage.Record, hasRepl bool, writes []pendingWrite) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if hasRepl && !p.hasRepl {
		p.replace, p.hasRepl = replace, true
	}
	for _, w := range writes {
		if _, newer := p.pending[w.rec.Key]; newer {
			continue
		}
		p.pending[w.rec.Key] = w
		p.order = append(p.order, w.rec.Key)
	}
}

func (p *persister) flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	replace, hasRepl, writes := p.take()
	if !hasRepl && len(writes) == 0 {
		return nil
	}

	if hasRepl {
		if err := p.log.ReplaceAll(ctx, replace); err != nil {
			p.requeue(replace, true, writes)
			return errors.WrapTransient(err, "localstore", "flush", "replace op log")
		}
	}

	var puts []storage.Record
	var dels []string
	for _, w := range writes {
		if w.delete {
			dels = append(dels, w.rec.Key)
		} else {
			puts = append(puts, w.rec)
		}
	}
	if len(puts) > 0 {
		if err := p.log.Put(ctx, puts...); err != nil {
			p.requeue(nil, false, writes)
			return errors.WrapTransient(err, "localstore", "flush", "put records")
		}
	}
	if len(dels) > 0 {
		if err := p.log.Delete(ctx, dels...); err != nil {
			var failed []pendingWrite
			for _, w := range writes {
				if w.delete {
					failed = append(failed, w)
				}
			}
			p.requeue(nil, false, failed)
			return errors.WrapTransient(err, "localstore", "flush", "delete records")
		}
	}
	return nil
}

func (p *persister) load(ctx context.Context) ([]TripleOp, []RelationOp, error) {
	recs, err := p.log.LoadAll(ctx)
	if err != nil {
		return nil, nil, errors.WrapTransient(err, "localstore", "Load", "read op log")
	}

	var triples []TripleOp
	var relations []RelationOp
	for _, rec := range recs {
		switch rec.Kind {
		case storage.KindTriple:
			var op TripleOp
			if err := json.Unmarshal(rec.Data, &op); err != nil {
				return nil, nil, errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrDataCorrupted, rec.Key, err),
					"localstore", "Load", "decode triple record")
			}
			triples = append(triples, op)
		case storage.KindRelation:
			var op RelationOp
			if err := json.Unmarshal(rec.Data, &op); err != nil {
				return nil, nil, errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrDataCorrupted, rec.Key, err),
					"localstore", "Load", "decode relation record")
			}
			relations = append(relations, op)
		default:
			p.logger.Warn("Skipping op log record of unknown kind", "key", rec.Key, "kind", rec.Kind)
		}
	}
	return triples, relations, nil
}

func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done
	return p.flush(ctx)
}

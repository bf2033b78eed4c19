// Package memory is an in-process remote. It backs tests and the daemon's
// memory mode, and can inject per-entity failures and latency.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/projection"
	"github.com/c360/graphsync/remote"
)

// Remote is a map-backed remote.Querier. The zero value is not usable; call
// New.
type Remote struct {
	mu        sync.RWMutex
	headers   map[string]remote.EntityPayload
	triples   map[string]graph.Triple
	relations map[string]graph.Relation
	deleted   map[string]bool

	failures map[string]error
	latency  time.Duration
	fetches  map[string]int
	calls    map[callKey]int
	pushes   int
}

type callKey struct{ op, id string }

var _ remote.Querier = (*Remote)(nil)

// New returns an empty remote.
func New() *Remote {
	return &Remote{
		headers:   make(map[string]remote.EntityPayload),
		triples:   make(map[string]graph.Triple),
		relations: make(map[string]graph.Relation),
		deleted:   make(map[string]bool),
		failures:  make(map[string]error),
		fetches:   make(map[string]int),
		calls:     make(map[callKey]int),
	}
}

// Seed stores facts as if they had been published by someone else.
func (m *Remote) Seed(triples []graph.Triple, relations []graph.Relation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range triples {
		m.triples[t.Key()] = t
	}
	for _, r := range relations {
		m.relations[r.Key()] = r
	}
}

// SetDeleted marks id deleted without removing its facts.
func (m *Remote) SetDeleted(id string, deleted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted[id] = deleted
}

// FailOn makes every operation touching id return err. A nil err clears it.
func (m *Remote) FailOn(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, id)
		return
	}
	m.failures[id] = err
}

// SetLatency delays every call by d, or until ctx ends for reads.
func (m *Remote) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Fetches returns how many IsDeleted checks were made for id, one per sync.
func (m *Remote) Fetches(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches[id]
}

// Calls returns how many times op, a Querier method name such as
// "FetchTriples", was called for id. Failed calls count too.
func (m *Remote) Calls(op, id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[callKey{op, id}]
}

// Pushes returns the number of accepted pushes.
func (m *Remote) Pushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pushes
}

func (m *Remote) wait(ctx context.Context, op, id string) error {
	m.mu.Lock()
	m.calls[callKey{op, id}]++
	d := m.latency
	failure := m.failures[id]
	m.mu.Unlock()

	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "memory", op, "wait for "+id)
		case <-t.C:
		}
	}
	if failure != nil {
		return errors.WrapTransient(failure, "memory", op, id)
	}
	return ctx.Err()
}

func (m *Remote) IsDeleted(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	m.fetches[id]++
	m.mu.Unlock()
	if err := m.wait(ctx, "IsDeleted", id); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deleted[id], nil
}

func (m *Remote) FetchEntity(ctx context.Context, id string) (*remote.EntityPayload, error) {
	if err := m.wait(ctx, "FetchEntity", id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.deleted[id] {
		return nil, nil
	}
	triples := m.triplesOf(id)
	relations := m.relationsFrom(id)
	header, known := m.headers[id]
	if !known && len(triples) == 0 && len(relations) == 0 {
		return nil, nil
	}
	e := projection.Project(id, triples, relations)
	header.ID = id
	if header.Name == nil {
		header.Name = e.Name
	}
	if header.Description == nil {
		header.Description = e.Description
	}
	if len(header.Types) == 0 {
		header.Types = e.Types
	}
	return &header, nil
}

func (m *Remote) FetchTriples(ctx context.Context, entityID string) ([]graph.Triple, error) {
	if err := m.wait(ctx, "FetchTriples", entityID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triplesOf(entityID), nil
}

func (m *Remote) FetchRelations(ctx context.Context, entityID string) ([]graph.Relation, error) {
	if err := m.wait(ctx, "FetchRelations", entityID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.relationsFrom(entityID), nil
}

// PushEntity merges the header into the stored one; nil or empty fields keep
// their stored value.
func (m *Remote) PushEntity(ctx context.Context, e remote.EntityPayload) error {
	if err := m.wait(ctx, "PushEntity", e.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.headers[e.ID]
	h.ID = e.ID
	if e.Name != nil {
		h.Name = e.Name
	}
	if e.Description != nil {
		h.Description = e.Description
	}
	if len(e.Types) > 0 {
		h.Types = e.Types
	}
	m.headers[e.ID] = h
	for _, t := range e.Triples {
		m.triples[t.Key()] = t
	}
	for _, r := range e.Relations {
		m.relations[r.Key()] = r
	}
	delete(m.deleted, e.ID)
	m.pushes++
	return nil
}

func (m *Remote) PushTriple(ctx context.Context, c remote.TripleChange) error {
	if err := m.wait(ctx, "PushTriple", c.Triple.EntityID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Deleted {
		delete(m.triples, c.Triple.Key())
	} else {
		m.triples[c.Triple.Key()] = c.Triple
	}
	m.pushes++
	return nil
}

func (m *Remote) PushRelation(ctx context.Context, c remote.RelationChange) error {
	if err := m.wait(ctx, "PushRelation", c.Relation.FromEntity.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Deleted {
		delete(m.relations, c.Relation.Key())
	} else {
		m.relations[c.Relation.Key()] = c.Relation
	}
	m.pushes++
	return nil
}

// PushDelete marks id deleted and drops its facts.
func (m *Remote) PushDelete(ctx context.Context, id string) error {
	if err := m.wait(ctx, "PushDelete", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.triples {
		if t.EntityID == id {
			delete(m.triples, k)
		}
	}
	for k, r := range m.relations {
		if r.FromEntity.ID == id {
			delete(m.relations, k)
		}
	}
	delete(m.headers, id)
	m.deleted[id] = true
	m.pushes++
	return nil
}

// QueryEntities projects every known entity, filters and pages by id order.
func (m *Remote) QueryEntities(ctx context.Context, f remote.Filter, p remote.Page) ([]remote.EntityPayload, error) {
	if err := m.wait(ctx, "QueryEntities", ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []remote.EntityPayload
	for _, id := range m.entityIDs() {
		if m.deleted[id] {
			continue
		}
		triples, relations := m.triplesOf(id), m.relationsFrom(id)
		e := projection.Project(id, triples, relations)
		if !f.Match(e) {
			continue
		}
		matched = append(matched, remote.EntityPayload{
			ID: id, Name: e.Name, Description: e.Description, Types: e.Types,
			Triples: triples, Relations: relations,
		})
	}
	start, end := p.Window(len(matched))
	return matched[start:end], nil
}

func (m *Remote) entityIDs() []string {
	seen := make(map[string]struct{})
	for id := range m.headers {
		seen[id] = struct{}{}
	}
	for _, t := range m.triples {
		seen[t.EntityID] = struct{}{}
	}
	for _, r := range m.relations {
		seen[r.FromEntity.ID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Remote) triplesOf(id string) []graph.Triple {
	var out []graph.Triple
	for _, t := range m.triples {
		if t.EntityID == id {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (m *Remote) relationsFrom(id string) []graph.Relation {
	var out []graph.Relation
	for _, r := range m.relations {
		if r.FromEntity.ID == id {
			out = append(out, r)
		}
	}
	graph.SortByIndex(out)
	return out
}

// Package storage defines the persistence backend for the local op store.
//
// The op log is a keyed map from composite id to a JSON-encoded local op
// record, tombstones included. Restoring every record reproduces the exact
// store state. Backends:
//   - kvstore: NATS JetStream KV bucket, shared by processes on one host
//   - sqlitestore: single SQLite file
//   - Memory: in-process, for tests and ephemeral sessions
package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Kind separates triple and relation records that share one key space.
type Kind string

const (
	KindTriple   Kind = "triple"
	KindRelation Kind = "relation"
)

// Record is one persisted local op.
type Record struct {
	Key  string          `json:"key"`
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// OpLog persists local op records.
//
// Implementations must be safe for concurrent use. Put overwrites any record
// with the same key. Delete is idempotent. ReplaceAll atomically (where the
// backend allows) swaps the whole log for recs.
type OpLog interface {
	Put(ctx context.Context, recs ...Record) error
	Delete(ctx context.Context, keys ...string) error
	ReplaceAll(ctx context.Context, recs []Record) error
	LoadAll(ctx context.Context) ([]Record, error)
	Close() error
}

// Memory is an in-process OpLog.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]Record
}

var _ OpLog = (*Memory)(nil)

// NewMemory returns an empty in-process op log.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]Record)}
}

func (m *Memory) Put(_ context.Context, recs ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.recs[r.Key] = r
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.recs, k)
	}
	return nil
}

func (m *Memory) ReplaceAll(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = make(map[string]Record, len(recs))
	for _, r := range recs {
		m.recs[r.Key] = r
	}
	return nil
}

// LoadAll returns records sorted by key.
func (m *Memory) LoadAll(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Close() error { return nil }

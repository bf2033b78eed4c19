// Package kvremote keeps the remote graph in a NATS JetStream KV bucket.
//
// Key layout, every id token base64url encoded so arbitrary ids stay valid
// subject tokens:
//
//	t.<space>.<entity>.<attribute>  triple
//	r.<space>.<from>.<relation>     relation
//	e.<entity>                      entity header
//	x.<entity>                      deletion marker
//
// Reads retry with backoff. Pushes are single attempts, except that the
// entity header is merged with compare-and-set and retried on conflict.
package kvremote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/natsclient"
	"github.com/c360/graphsync/pkg/retry"
	"github.com/c360/graphsync/projection"
	"github.com/c360/graphsync/remote"
)

// DefaultBucket is the bucket used by the daemon.
const DefaultBucket = "GRAPH_REMOTE"

// Remote implements remote.Querier over a KV bucket.
type Remote struct {
	kv     *natsclient.KVStore
	retry  retry.Config
	logger *slog.Logger
}

var _ remote.Querier = (*Remote)(nil)

// Option configures a Remote.
type Option func(*Remote)

// WithRetry sets the retry policy for reads.
func WithRetry(cfg retry.Config) Option {
	return func(r *Remote) { r.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Remote) { r.logger = l }
}

// New wraps an open KV store.
func New(kv *natsclient.KVStore, opts ...Option) *Remote {
	r := &Remote{kv: kv, retry: retry.DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "kvremote", "bucket", kv.Bucket())
	return r
}

// Open creates or opens bucket on client.
func Open(ctx context.Context, client *natsclient.Client, bucket string, opts ...Option) (*Remote, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	// JetStream may still be coming up right after connect.
	b, err := retry.DoWithResult(ctx, retry.Quick(), func() (jetstream.KeyValue, error) {
		return client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "graphsync remote graph",
			History:     1,
		})
	})
	if err != nil {
		return nil, err
	}
	return New(client.NewKVStore(b), opts...), nil
}

func token(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func untoken(tok string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(tok)
	return string(b), err == nil
}

func tripleKey(t graph.Triple) string {
	return "t." + token(t.Space) + "." + token(t.EntityID) + "." + token(t.AttributeID)
}

func relationKey(r graph.Relation) string {
	return "r." + token(r.Space) + "." + token(r.FromEntity.ID) + "." + token(r.ID)
}

func headerKey(id string) string { return "e." + token(id) }

func deletedKey(id string) string { return "x." + token(id) }

// read runs fn under the read retry policy. Missing keys are not retried.
func read[T any](ctx context.Context, r *Remote, method string, fn func() (T, error)) (T, error) {
	v, err := retry.DoWithResult(ctx, r.retry, func() (T, error) {
		v, err := fn()
		if err != nil && natsclient.IsKVNotFoundError(err) {
			return v, retry.NonRetryable(err)
		}
		return v, err
	})
	if err != nil {
		var zero T
		if errors.IsFatal(err) {
			return zero, err
		}
		return zero, errors.WrapTransient(err, "kvremote", method, "read")
	}
	return v, nil
}

func (r *Remote) IsDeleted(ctx context.Context, id string) (bool, error) {
	return read(ctx, r, "IsDeleted", func() (bool, error) {
		_, err := r.kv.Get(ctx, deletedKey(id))
		if natsclient.IsKVNotFoundError(err) {
			return false, nil
		}
		return err == nil, err
	})
}

func (r *Remote) FetchEntity(ctx context.Context, id string) (*remote.EntityPayload, error) {
	header, err := read(ctx, r, "FetchEntity", func() (*remote.EntityPayload, error) {
		entry, err := r.kv.Get(ctx, headerKey(id))
		if natsclient.IsKVNotFoundError(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var p remote.EntityPayload
		if err := json.Unmarshal(entry.Value, &p); err != nil {
			return nil, retry.NonRetryable(errors.WrapFatal(err, "kvremote", "FetchEntity", "decode header"))
		}
		return &p, nil
	})
	if err != nil || header != nil {
		return header, err
	}

	// No header: the entity exists if anyone published facts for it.
	triples, err := r.FetchTriples(ctx, id)
	if err != nil {
		return nil, err
	}
	relations, err := r.FetchRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(triples) == 0 && len(relations) == 0 {
		return nil, nil
	}
	e := projection.Project(id, triples, relations)
	return &remote.EntityPayload{ID: id, Name: e.Name, Description: e.Description, Types: e.Types}, nil
}

func (r *Remote) FetchTriples(ctx context.Context, entityID string) ([]graph.Triple, error) {
	return read(ctx, r, "FetchTriples", func() ([]graph.Triple, error) {
		return loadAll[graph.Triple](ctx, r.kv, "t.*."+token(entityID)+".*")
	})
}

func (r *Remote) FetchRelations(ctx context.Context, entityID string) ([]graph.Relation, error) {
	rels, err := read(ctx, r, "FetchRelations", func() ([]graph.Relation, error) {
		return loadAll[graph.Relation](ctx, r.kv, "r.*."+token(entityID)+".*")
	})
	graph.SortByIndex(rels)
	return rels, err
}

func loadAll[T any](ctx context.Context, kv *natsclient.KVStore, filter string) ([]T, error) {
	keys, err := kv.Keys(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		entry, err := kv.Get(ctx, k)
		if natsclient.IsKVNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(entry.Value, &v); err != nil {
			return nil, retry.NonRetryable(errors.WrapFatal(err, "kvremote", "loadAll", "decode "+k))
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Remote) put(ctx context.Context, method, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapInvalid(err, "kvremote", method, "encode")
	}
	if _, err := r.kv.Put(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "kvremote", method, "put")
	}
	return nil
}

func (r *Remote) del(ctx context.Context, method, key string) error {
	if err := r.kv.Delete(ctx, key); err != nil {
		return errors.WrapTransient(err, "kvremote", method, "delete")
	}
	return nil
}

// PushEntity merges the header into the stored one, writes any facts
// carried with it and clears a deletion marker. Header fields left nil or
// empty keep their stored value.
func (r *Remote) PushEntity(ctx context.Context, e remote.EntityPayload) error {
	err := natsclient.UpdateJSON(ctx, r.kv, headerKey(e.ID), func(h *remote.EntityPayload) error {
		mergeHeader(h, e)
		return nil
	})
	if err != nil {
		return errors.WrapTransient(err, "kvremote", "PushEntity", "merge header")
	}
	for _, t := range e.Triples {
		if err := r.put(ctx, "PushEntity", tripleKey(t), t); err != nil {
			return err
		}
	}
	for _, rel := range e.Relations {
		if err := r.put(ctx, "PushEntity", relationKey(rel), rel); err != nil {
			return err
		}
	}
	return r.del(ctx, "PushEntity", deletedKey(e.ID))
}

func mergeHeader(h *remote.EntityPayload, e remote.EntityPayload) {
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
	h.Triples, h.Relations = nil, nil
}

func (r *Remote) PushTriple(ctx context.Context, c remote.TripleChange) error {
	if c.Deleted {
		return r.del(ctx, "PushTriple", tripleKey(c.Triple))
	}
	return r.put(ctx, "PushTriple", tripleKey(c.Triple), c.Triple)
}

func (r *Remote) PushRelation(ctx context.Context, c remote.RelationChange) error {
	if c.Deleted {
		return r.del(ctx, "PushRelation", relationKey(c.Relation))
	}
	return r.put(ctx, "PushRelation", relationKey(c.Relation), c.Relation)
}

// PushDelete writes the deletion marker first so readers stop fetching, then
// removes the entity's facts.
func (r *Remote) PushDelete(ctx context.Context, id string) error {
	if err := r.put(ctx, "PushDelete", deletedKey(id), map[string]string{"id": id}); err != nil {
		return err
	}
	keys, err := r.kv.Keys(ctx, "t.*."+token(id)+".*")
	if err != nil {
		return errors.WrapTransient(err, "kvremote", "PushDelete", "list triples")
	}
	relKeys, err := r.kv.Keys(ctx, "r.*."+token(id)+".*")
	if err != nil {
		return errors.WrapTransient(err, "kvremote", "PushDelete", "list relations")
	}
	for _, k := range append(append(keys, relKeys...), headerKey(id)) {
		if err := r.del(ctx, "PushDelete", k); err != nil {
			return err
		}
	}
	return nil
}

// QueryEntities scans the bucket for entity ids, projects and filters them.
func (r *Remote) QueryEntities(ctx context.Context, f remote.Filter, p remote.Page) ([]remote.EntityPayload, error) {
	ids, err := read(ctx, r, "QueryEntities", func() ([]string, error) {
		return r.entityIDs(ctx)
	})
	if err != nil {
		return nil, err
	}

	var matched []remote.EntityPayload
	for _, id := range ids {
		if deleted, err := r.IsDeleted(ctx, id); err != nil || deleted {
			if err != nil {
				return nil, err
			}
			continue
		}
		triples, err := r.FetchTriples(ctx, id)
		if err != nil {
			return nil, err
		}
		relations, err := r.FetchRelations(ctx, id)
		if err != nil {
			return nil, err
		}
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

func (r *Remote) entityIDs(ctx context.Context) ([]string, error) {
	keys, err := r.kv.Keys(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, k := range keys {
		parts := strings.Split(k, ".")
		var tok string
		switch {
		case (parts[0] == "t" || parts[0] == "r") && len(parts) == 4:
			tok = parts[2]
		case parts[0] == "e" && len(parts) == 2:
			tok = parts[1]
		default:
			continue
		}
		if id, ok := untoken(tok); ok {
			seen[id] = struct{}{}
		} else {
			r.logger.Warn("Skipping undecodable key", "key", k)
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

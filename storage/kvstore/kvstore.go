// Package kvstore persists the local op log in a NATS JetStream KV bucket.
//
// Each record lives under "op.<base64url(composite key)>" as its JSON
// encoding. ReplaceAll is not atomic on KV: it writes every new record, then
// deletes keys the new set no longer holds, so an interrupted replace leaves
// a superset of the intended log.
package kvstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/natsclient"
	"github.com/c360/graphsync/pkg/retry"
	"github.com/c360/graphsync/storage"
)

// DefaultBucket is the bucket used when none is configured.
const DefaultBucket = "LOCAL_OPS"

const prefix = "op."

// Store is a storage.OpLog on a KV bucket.
type Store struct {
	kv     *natsclient.KVStore
	logger *slog.Logger
}

var _ storage.OpLog = (*Store)(nil)

// New wraps an open KV store.
func New(kv *natsclient.KVStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger.With("component", "kvstore", "bucket", kv.Bucket())}
}

// Open creates or opens bucket on client.
func Open(ctx context.Context, client *natsclient.Client, bucket string, logger *slog.Logger) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	b, err := retry.DoWithResult(ctx, retry.Quick(), func() (jetstream.KeyValue, error) {
		return client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "graphsync local op log",
			History:     1,
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "kvstore", "Open", "create bucket "+bucket)
	}
	return New(client.NewKVStore(b), logger), nil
}

func kvKey(key string) string {
	return prefix + base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (s *Store) Put(ctx context.Context, recs ...storage.Record) error {
	for _, r := range recs {
		data, err := json.Marshal(r)
		if err != nil {
			return errors.WrapInvalid(err, "kvstore", "Put", "marshal "+r.Key)
		}
		if _, err := s.kv.Put(ctx, kvKey(r.Key), data); err != nil {
			return errors.WrapTransient(err, "kvstore", "Put", "put "+r.Key)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := s.kv.Delete(ctx, kvKey(k)); err != nil {
			return errors.WrapTransient(err, "kvstore", "Delete", "delete "+k)
		}
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, recs []storage.Record) error {
	existing, err := s.kv.Keys(ctx, prefix+">")
	if err != nil {
		return errors.WrapTransient(err, "kvstore", "ReplaceAll", "list keys")
	}
	if err := s.Put(ctx, recs...); err != nil {
		return err
	}

	keep := make(map[string]bool, len(recs))
	for _, r := range recs {
		keep[kvKey(r.Key)] = true
	}
	for _, k := range existing {
		if keep[k] {
			continue
		}
		if err := s.kv.Delete(ctx, k); err != nil {
			return errors.WrapTransient(err, "kvstore", "ReplaceAll", "delete stale "+k)
		}
	}
	return nil
}

// LoadAll returns every record sorted by key. Entries that do not decode are
// logged and skipped.
func (s *Store) LoadAll(ctx context.Context) ([]storage.Record, error) {
	keys, err := s.kv.Keys(ctx, prefix+">")
	if err != nil {
		return nil, errors.WrapTransient(err, "kvstore", "LoadAll", "list keys")
	}

	out := make([]storage.Record, 0, len(keys))
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				continue
			}
			return nil, errors.WrapTransient(err, "kvstore", "LoadAll", "get "+k)
		}
		var r storage.Record
		if err := json.Unmarshal(entry.Value, &r); err != nil {
			s.logger.Warn("Skipping undecodable op record", "key", k, "error", err)
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close is a no-op; the NATS client is owned by the caller.
func (s *Store) Close() error { return nil }

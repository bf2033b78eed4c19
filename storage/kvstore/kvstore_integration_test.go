//go:build integration

package kvstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/natsclient"
	"github.com/c360/graphsync/storage"
)

func TestStore_Integration(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, tc.Client, "", nil)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx,
		storage.Record{Key: "s:e:a", Kind: storage.KindTriple, Data: json.RawMessage(`{"v":1}`)},
		storage.Record{Key: "s:r.1", Kind: storage.KindRelation, Data: json.RawMessage(`{}`)},
	))
	recs, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "s:e:a", recs[0].Key)
	assert.Equal(t, storage.KindRelation, recs[1].Kind)

	require.NoError(t, s.Delete(ctx, "s:r.1", "missing"))
	recs, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, s.ReplaceAll(ctx, []storage.Record{{Key: "x", Kind: storage.KindTriple, Data: json.RawMessage(`{}`)}}))
	recs, err = s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "x", recs[0].Key)
}

func TestStore_PersistsLocalStore(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log, err := Open(ctx, tc.Client, "LOCAL_OPS_ROUNDTRIP", nil)
	require.NoError(t, err)

	first := localstore.New(localstore.WithPersister(log, time.Hour))
	first.Upsert(graph.Triple{EntityID: "e", AttributeID: "a", Value: graph.Text("v")}, "s")
	first.Remove(graph.Triple{EntityID: "e", AttributeID: "gone"}, "s")
	require.NoError(t, first.Close(ctx))

	second := localstore.New(localstore.WithPersister(log, time.Hour))
	require.NoError(t, second.Load(ctx))
	op, ok := second.Snapshot().Triple(graph.TripleKey("s", "e", "gone"))
	require.True(t, ok)
	assert.True(t, op.IsDeleted)
	tr, _ := second.Snapshot().Len()
	assert.Equal(t, 2, tr)
}

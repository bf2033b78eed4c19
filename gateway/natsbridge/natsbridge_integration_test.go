//go:build integration

package natsbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/gateway"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/natsclient"
	"github.com/c360/graphsync/readcache"
	"github.com/c360/graphsync/remote/memory"
	"github.com/c360/graphsync/syncworker"
	"github.com/c360/graphsync/vocabulary"
)

func TestBridge_Integration(t *testing.T) {
	tc := natsclient.NewTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src := memory.New()
	src.Seed([]graph.Triple{{Space: "s", EntityID: "e1", AttributeID: vocabulary.Name, Value: graph.Text("One")}}, nil)
	cache, err := readcache.New()
	require.NoError(t, err)
	w, err := syncworker.New(syncworker.Config{}, syncworker.Dependencies{Remote: src, Store: localstore.New(), Cache: cache})
	require.NoError(t, err)

	b, err := New(gateway.Config{}, tc.Client, w, nil, nil)
	require.NoError(t, err)
	w.AddSink(b.Deliver)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	require.NoError(t, b.Start(ctx))

	events, err := tc.Client.Conn().SubscribeSync("graphsync.evt.>")
	require.NoError(t, err)

	msg, err := tc.Client.Conn().Request("graphsync.cmd", []byte(`{"type":"SYNC_ENTITY","id":"e1"}`), 5*time.Second)
	require.NoError(t, err)
	var reply gateway.Reply
	require.NoError(t, json.Unmarshal(msg.Data, &reply))
	require.True(t, reply.OK)

	evt, err := events.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "graphsync.evt.sync_success", evt.Subject)
	var e syncworker.Event
	require.NoError(t, json.Unmarshal(evt.Data, &e))
	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, "One", *e.Data.Entity.Name)

	msg, err = tc.Client.Conn().Request("graphsync.cmd", []byte(`{"type":"BOGUS"}`), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg.Data, &reply))
	assert.False(t, reply.OK)
}

package natsbridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/gateway"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/localstore"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/readcache"
	"github.com/c360/graphsync/remote/memory"
	"github.com/c360/graphsync/syncworker"
	"github.com/c360/graphsync/testutil"
	"github.com/c360/graphsync/vocabulary"
)

type mockSubmitter struct{ mock.Mock }

func (m *mockSubmitter) Submit(cmd syncworker.Command) error {
	return m.Called(cmd).Error(0)
}

func newBridge(t *testing.T) (*Bridge, *testutil.MockNATSClient, *mockSubmitter, *metric.Metrics) {
	t.Helper()
	conn := testutil.NewMockNATSClient()
	target := &mockSubmitter{}
	m := metric.NewMetricsRegistry().Metrics
	b, err := New(gateway.Config{}, conn, target, nil, m)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	return b, conn, target, m
}

func TestBridge_AcceptsCommand(t *testing.T) {
	_, conn, target, m := newBridge(t)
	target.On("Submit", syncworker.Command{Type: syncworker.CmdSyncEntity, ID: "e1"}).Return(nil).Once()

	data, err := conn.Request(context.Background(), "graphsync.cmd", []byte(`{"type":"SYNC_ENTITY","id":"e1"}`))
	require.NoError(t, err)

	target.AssertExpectations(t)
	var reply gateway.Reply
	require.NoError(t, json.Unmarshal(data, &reply))
	assert.True(t, reply.OK)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.GatewayCommands.WithLabelValues("nats", "accepted")))
}

func TestBridge_RejectsInvalidCommand(t *testing.T) {
	_, conn, target, m := newBridge(t)

	data, err := conn.Request(context.Background(), "graphsync.cmd", []byte(`{"type":"SYNC_ENTITY"}`))
	require.NoError(t, err)

	target.AssertNotCalled(t, "Submit", mock.Anything)
	var reply gateway.Reply
	require.NoError(t, json.Unmarshal(data, &reply))
	assert.False(t, reply.OK)
	assert.Equal(t, "invalid", reply.Error.Class)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.GatewayCommands.WithLabelValues("nats", "rejected")))
}

func TestBridge_DeliverPublishesPerKind(t *testing.T) {
	b, conn, _, m := newBridge(t)

	b.Deliver(syncworker.Event{Type: syncworker.EvtSyncSuccess, ID: "e1"})
	b.Deliver(syncworker.Event{Type: syncworker.EvtMultipleSyncComplete, IDs: []string{"e1"}})

	assert.Equal(t, 1, conn.GetMessageCount("graphsync.evt.sync_success"))
	assert.Equal(t, 1, conn.GetMessageCount("graphsync.evt.multiple_sync_complete"))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.GatewayEventsOut.WithLabelValues("nats")))

	conn.SetPublishError(stderrors.New("disconnected"))
	b.Deliver(syncworker.Event{Type: syncworker.EvtSyncError, ID: "e2"})
	published, failed := b.Stats()
	assert.Equal(t, uint64(2), published)
	assert.Equal(t, uint64(1), failed)

	require.NoError(t, b.Stop(0))
	conn.SetPublishError(nil)
	b.Deliver(syncworker.Event{Type: syncworker.EvtSyncSuccess, ID: "e3"})
	assert.Equal(t, 1, conn.GetMessageCount("graphsync.evt.sync_success"))
}

func TestBridge_WorkerRoundTrip(t *testing.T) {
	r := memory.New()
	r.Seed([]graph.Triple{{Space: "s", EntityID: "e1", AttributeID: vocabulary.Name, Value: graph.Text("One")}}, nil)
	cache, err := readcache.New()
	require.NoError(t, err)
	w, err := syncworker.New(syncworker.Config{}, syncworker.Dependencies{Remote: r, Store: localstore.New(), Cache: cache})
	require.NoError(t, err)

	conn := testutil.NewMockNATSClient()
	b, err := New(gateway.Config{}, conn, w, nil, nil)
	require.NoError(t, err)
	w.AddSink(b.Deliver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })
	require.NoError(t, b.Start(ctx))

	data, err := conn.Request(ctx, "graphsync.cmd", []byte(`{"type":"SYNC_MULTIPLE","ids":["e1","e2"]}`))
	require.NoError(t, err)
	var reply gateway.Reply
	require.NoError(t, json.Unmarshal(data, &reply))
	require.True(t, reply.OK)

	testutil.WaitForMessageCount(t, conn, "graphsync.evt.multiple_sync_complete", 1, 2*time.Second)
	assert.Equal(t, 2, conn.GetMessageCount("graphsync.evt.sync_success"))

	var e syncworker.Event
	require.NoError(t, json.Unmarshal(conn.GetMessages("graphsync.evt.multiple_sync_complete")[0], &e))
	assert.Equal(t, []string{"e1", "e2"}, e.IDs)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(gateway.Config{}, nil, nil, nil, nil)
	require.Error(t, err)

	b, _, _, _ := newBridge(t)
	assert.Error(t, b.Start(context.Background()), "second start")
}

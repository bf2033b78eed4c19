package wsbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/gateway"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/syncworker"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	cmds []syncworker.Command
}

func (r *recordingSubmitter) Submit(cmd syncworker.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cmds)
}

func setup(t *testing.T, cfg gateway.Config) (*Server, *recordingSubmitter, *metric.Metrics, string) {
	t.Helper()
	target := &recordingSubmitter{}
	m := metric.NewMetricsRegistry().Metrics
	s, err := New(cfg, target, nil, m)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, target, m, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestServer_CommandReply(t *testing.T) {
	_, target, m, url := setup(t, gateway.Config{})
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SYNC_MULTIPLE","ids":["a","b"]}`)))
	var reply gateway.Reply
	readJSON(t, conn, &reply)
	assert.True(t, reply.OK)
	assert.Equal(t, syncworker.CmdSyncMultiple, reply.Type)
	assert.Equal(t, 1, target.count())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SAVE_TRIPLE"}`)))
	readJSON(t, conn, &reply)
	assert.False(t, reply.OK)
	assert.Equal(t, "invalid", reply.Error.Class)
	assert.Equal(t, 1, target.count())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayCommands.WithLabelValues("websocket", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayCommands.WithLabelValues("websocket", "rejected")))
}

func TestServer_DeliverBroadcasts(t *testing.T) {
	s, _, m, url := setup(t, gateway.Config{})
	a, b := dial(t, url), dial(t, url)
	require.Eventually(t, func() bool { return s.Clients() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatewayClients))

	s.Deliver(syncworker.Event{Type: syncworker.EvtDeleteSuccess, ID: "e1"})
	for _, conn := range []*websocket.Conn{a, b} {
		var e syncworker.Event
		readJSON(t, conn, &e)
		assert.Equal(t, syncworker.EvtDeleteSuccess, e.Type)
		assert.Equal(t, "e1", e.ID)
	}

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, 5*time.Millisecond)
}

func TestServer_Origin(t *testing.T) {
	_, _, _, url := setup(t, gateway.Config{})
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, _, _, url = setup(t, gateway.Config{AllowedOrigins: []string{"https://app.example"}})
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://app.example"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestServer_StartStop(t *testing.T) {
	target := &recordingSubmitter{}
	s, err := New(gateway.Config{WSAddr: "127.0.0.1:0"}, target, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	conn := dial(t, "ws://"+s.Addr()+"/ws")
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop(time.Second))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.NoError(t, s.Stop(time.Second))
}

func TestServer_StartTLS(t *testing.T) {
	// Borrow httptest's certificate and the client trust that matches it.
	certs := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(certs.Close)
	clientTLS := certs.Client().Transport.(*http.Transport).TLSClientConfig

	s, err := New(gateway.Config{WSAddr: "127.0.0.1:0"}, &recordingSubmitter{}, nil, nil)
	require.NoError(t, err)
	s.SetTLSConfig(certs.TLS.Clone())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(time.Second) })

	_, _, err = websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	assert.Error(t, err, "plain ws against a TLS listener")

	dialer := websocket.Dialer{TLSClientConfig: clientTLS, HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial("wss://"+s.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SYNC_PENDING_CHANGES"}`)))
	var reply gateway.Reply
	readJSON(t, conn, &reply)
	assert.True(t, reply.OK)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(gateway.Config{}, nil, nil, nil)
	assert.Error(t, err)

	s, err := New(gateway.Config{}, &recordingSubmitter{}, nil, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()), "no address")
}

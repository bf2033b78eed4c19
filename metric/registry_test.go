package metric

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/errors"
)

func TestNewMetricsRegistry_CoreMetrics(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r.CoreMetrics())

	r.Metrics.SyncsTotal.WithLabelValues("synced").Inc()
	r.Metrics.SyncsTotal.WithLabelValues("synced").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Metrics.SyncsTotal.WithLabelValues("synced")))

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["graphsync_sync_entities_total"])
	assert.True(t, names["go_goroutines"])
}

func TestMetricsRegistry_RegisterDuplicate(t *testing.T) {
	r := NewMetricsRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "dup"})

	require.NoError(t, r.RegisterCounter("svc", "dup_total", c))

	err := r.RegisterCounter("svc", "dup_total", c)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "dup"})
	err = r.RegisterCounter("svc2", "dup_total", other)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	r := NewMetricsRegistry()
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "thing", Help: "thing"}, []string{"k"})

	require.NoError(t, r.RegisterGaugeVec("svc", "thing", g))
	assert.True(t, r.Unregister("svc", "thing"))
	assert.False(t, r.Unregister("svc", "thing"))
	require.NoError(t, r.RegisterGaugeVec("svc", "thing", g))
}

func TestServer_Handler(t *testing.T) {
	r := NewMetricsRegistry()
	r.Metrics.FanoutSkipped.Inc()
	s := NewServer(0, "", r)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "graphsync_sync_fanout_skipped_total 1")

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	s := &Server{addr: "127.0.0.1:0", path: "/metrics", registry: NewMetricsRegistry()}
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	resp, err := http.Get(s.Address())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestServer_HandleOverridesHealth(t *testing.T) {
	s := NewServer(0, "", NewMetricsRegistry())
	s.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

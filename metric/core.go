package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "graphsync"

// Metrics holds the process-wide sync metrics.
type Metrics struct {
	SyncsTotal     *prometheus.CounterVec // result: synced, deleted, error
	SyncDuration   prometheus.Histogram
	PushesTotal    *prometheus.CounterVec // kind, result
	FanoutSkipped  prometheus.Counter
	FanoutSpawned  prometheus.Counter
	EventsEmitted  *prometheus.CounterVec // kind
	StoreEntries   *prometheus.GaugeVec   // kind: triple, relation
	StorePending   prometheus.Gauge
	CacheRejected  prometheus.Counter
	MergeDuration  prometheus.Histogram
	FilterFailures prometheus.Counter

	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge

	GatewayCommands  *prometheus.CounterVec // transport, result
	GatewayClients   prometheus.Gauge
	GatewayEventsOut *prometheus.CounterVec // transport
}

// NewMetrics creates the metric set. They are registered by NewMetricsRegistry.
func NewMetrics() *Metrics {
	return &Metrics{
		SyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "entities_total",
			Help: "Entity syncs by terminal state",
		}, []string{"result"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "sync", Name: "duration_seconds",
			Help:    "Time from FETCHING to a terminal state",
			Buckets: prometheus.DefBuckets,
		}),
		PushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "pushes_total",
			Help: "Pushes to the remote by payload kind and result",
		}, []string{"kind", "result"}),
		FanoutSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "fanout_skipped_total",
			Help: "Related entities not fetched because they were already fetching or fetched",
		}),
		FanoutSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "fanout_spawned_total",
			Help: "Background syncs started for related entities",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "events_total",
			Help: "Outbound events by kind",
		}, []string{"kind"}),
		StoreEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "entries",
			Help: "Entries in the local op store",
		}, []string{"kind"}),
		StorePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "pending",
			Help: "Local entries not yet published",
		}),
		CacheRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "stale_writes_total",
			Help: "Read cache writes rejected because a newer local version was already applied",
		}),
		MergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "merge", Name: "duration_seconds",
			Help:    "Time spent merging and projecting one entity",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		FilterFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "table", Name: "filter_parse_failures_total",
			Help: "Malformed table filters degraded to an empty filter",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "nats", Name: "connected",
			Help: "NATS connection status (0=disconnected, 1=connected)",
		}),
		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "nats", Name: "reconnects_total",
			Help: "NATS reconnections",
		}),
		NATSCircuitBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "nats", Name: "circuit_breaker",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		GatewayCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "commands_total",
			Help: "Inbound commands by transport and result (accepted, rejected)",
		}, []string{"transport", "result"}),
		GatewayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "websocket_clients",
			Help: "Connected WebSocket clients",
		}),
		GatewayEventsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "events_delivered_total",
			Help: "Events delivered to external subscribers by transport",
		}, []string{"transport"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SyncsTotal, m.SyncDuration, m.PushesTotal, m.FanoutSkipped, m.FanoutSpawned,
		m.EventsEmitted, m.StoreEntries, m.StorePending, m.CacheRejected,
		m.MergeDuration, m.FilterFailures,
		m.NATSConnected, m.NATSReconnects, m.NATSCircuitBreaker,
		m.GatewayCommands, m.GatewayClients, m.GatewayEventsOut,
	}
}

package worker

import (
	"github.com/c360/graphsync/metric"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsService = "worker_pool"

type poolMetrics struct {
	queueDepth prometheus.Gauge
	inFlight   prometheus.Gauge
	submitted  prometheus.Counter
	dropped    prometheus.Counter
	duration   *prometheus.HistogramVec
}

func newPoolMetrics(registry *metric.MetricsRegistry, prefix string) *poolMetrics {
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_queue_depth",
			Help: "Items waiting in the pool queue",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_in_flight",
			Help: "Items currently being processed",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_submitted_total",
			Help: "Items accepted by the pool",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_dropped_total",
			Help: "Items rejected because the queue was full",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent processing items",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"status"}),
	}

	// Registration errors mean a pool with this prefix already exists; the
	// pool keeps its own collectors so it still works, just unexported.
	_ = registry.RegisterGauge(metricsService, prefix+"_queue_depth", m.queueDepth)
	_ = registry.RegisterGauge(metricsService, prefix+"_in_flight", m.inFlight)
	_ = registry.RegisterCounter(metricsService, prefix+"_submitted_total", m.submitted)
	_ = registry.RegisterCounter(metricsService, prefix+"_dropped_total", m.dropped)
	_ = registry.RegisterHistogramVec(metricsService, prefix+"_processing_duration_seconds", m.duration)
	return m
}

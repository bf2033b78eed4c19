package cache

import (
	"github.com/c360/graphsync/metric"
	"github.com/prometheus/client_golang/prometheus"
)

type cacheMetrics struct {
	ops  *prometheus.CounterVec
	size prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "graphsync",
			Subsystem:   "cache",
			Name:        "operations_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Cache operations by kind (hit, miss, set, delete, eviction)",
		}, []string{"op"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "graphsync",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of entries in cache",
		}),
	}

	if err := registry.RegisterCounterVec(prefix, "cache_operations", m.ops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_size", m.size); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) record(op string) {
	if m != nil {
		m.ops.WithLabelValues(op).Inc()
	}
}

func (m *cacheMetrics) updateSize(n int) {
	if m != nil {
		m.size.Set(float64(n))
	}
}

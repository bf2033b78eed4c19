// Package metric owns the Prometheus registry for a graphsync process.
//
// NewMetricsRegistry registers the core sync metrics (Metrics) together with
// the Go runtime and process collectors. Packages that carry their own
// collectors, such as pkg/worker and pkg/cache, register them through the
// MetricsRegistrar methods keyed by "service.metric" so duplicates are
// reported instead of panicking. Server exposes the registry over HTTP.
package metric

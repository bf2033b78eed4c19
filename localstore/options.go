package localstore

import (
	"log/slog"
	"time"

	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/storage"
)

type options struct {
	logger        *slog.Logger
	metrics       *metric.Metrics
	opLog         storage.OpLog
	flushInterval time.Duration
	now           func() string
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics reports entry counts to m.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPersister persists every change to log in the background, flushing at
// most every interval. Zero interval means 250ms.
func WithPersister(log storage.OpLog, interval time.Duration) Option {
	return func(o *options) {
		o.opLog = log
		o.flushInterval = interval
	}
}

// WithClock overrides the op timestamp source.
func WithClock(now func() string) Option {
	return func(o *options) { o.now = now }
}

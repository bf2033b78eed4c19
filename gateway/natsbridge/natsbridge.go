// Package natsbridge serves the command surface over NATS request/reply and
// publishes events on per-kind subjects.
package natsbridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/gateway"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/syncworker"
)

const transport = "nats"

// Conn is the part of natsclient.Client the bridge uses.
type Conn interface {
	Subscribe(ctx context.Context, subject string, handler func(ctx context.Context, data []byte, reply string)) error
	Publish(ctx context.Context, subject string, data []byte) error
}

// Bridge receives commands on Config.CommandSubject and publishes events
// under Config.EventPrefix.
type Bridge struct {
	cfg     gateway.Config
	conn    Conn
	target  gateway.Submitter
	logger  *slog.Logger
	metrics *metric.Metrics

	running   atomic.Bool
	published atomic.Uint64
	failed    atomic.Uint64
}

// New creates a bridge. Register Deliver as a worker sink to publish events.
func New(cfg gateway.Config, conn Conn, target gateway.Submitter, logger *slog.Logger, m *metric.Metrics) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conn == nil || target == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "natsbridge", "New", "NATS connection and submitter are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:     cfg,
		conn:    conn,
		target:  target,
		logger:  logger.With("component", "natsbridge"),
		metrics: m,
	}, nil
}

// Start subscribes to the command subject.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "natsbridge", "Start", "bridge already running")
	}
	if err := b.conn.Subscribe(ctx, b.cfg.CommandSubject, b.handle); err != nil {
		b.running.Store(false)
		return errors.Wrap(err, "natsbridge", "Start", "subscribe "+b.cfg.CommandSubject)
	}
	b.logger.Info("NATS bridge listening", "subject", b.cfg.CommandSubject, "events", b.cfg.EventPrefix+".>")
	return nil
}

// Stop stops publishing events. The subscription ends with the connection.
func (b *Bridge) Stop(time.Duration) error {
	b.running.Store(false)
	return nil
}

func (b *Bridge) handle(ctx context.Context, data []byte, reply string) {
	r, err := gateway.Handle(b.target, data)
	result := "accepted"
	if err != nil {
		result = "rejected"
		b.logger.Debug("Command rejected", "error", err)
	}
	if b.metrics != nil {
		b.metrics.GatewayCommands.WithLabelValues(transport, result).Inc()
	}
	if reply == "" {
		return
	}
	out, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := b.conn.Publish(ctx, reply, out); err != nil {
		b.logger.Warn("Failed to send reply", "error", err)
	}
}

// Deliver publishes e on its event subject. Failures are logged and counted;
// events are not buffered for later delivery.
func (b *Bridge) Deliver(e syncworker.Event) {
	if !b.running.Load() {
		return
	}
	data, err := gateway.EncodeEvent(e)
	if err != nil {
		b.logger.Error("Failed to encode event", "type", e.Type, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WriteTimeout)
	defer cancel()
	if err := b.conn.Publish(ctx, gateway.EventSubject(b.cfg.EventPrefix, e.Type), data); err != nil {
		b.failed.Add(1)
		b.logger.Warn("Failed to publish event", "type", e.Type, "id", e.ID, "error", err)
		return
	}
	b.published.Add(1)
	if b.metrics != nil {
		b.metrics.GatewayEventsOut.WithLabelValues(transport).Inc()
	}
}

// Stats returns published and failed event counts.
func (b *Bridge) Stats() (published, failed uint64) {
	return b.published.Load(), b.failed.Load()
}

var _ gateway.Bridge = (*Bridge)(nil)

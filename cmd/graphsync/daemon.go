package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360/graphsync/client"
	"github.com/c360/graphsync/config"
	"github.com/c360/graphsync/gateway"
	"github.com/c360/graphsync/gateway/natsbridge"
	"github.com/c360/graphsync/gateway/wsbridge"
	"github.com/c360/graphsync/health"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/natsclient"
	"github.com/c360/graphsync/pkg/tlsutil"
	"github.com/c360/graphsync/remote"
	"github.com/c360/graphsync/remote/kvremote"
	"github.com/c360/graphsync/remote/memory"
	"github.com/c360/graphsync/remote/subgraph"
	"github.com/c360/graphsync/storage"
	"github.com/c360/graphsync/storage/kvstore"
	"github.com/c360/graphsync/storage/sqlitestore"
)

// daemon holds everything start created, in start order.
type daemon struct {
	logger  *slog.Logger
	nats    *natsclient.Client
	oplog   storage.OpLog
	client  *client.Client
	bridges []gateway.Bridge
	metrics *metric.Server
	health  *health.Monitor
}

// start connects and starts every configured component. On error, whatever
// was already started is shut down.
func start(ctx context.Context, cfg *config.Config, logger *slog.Logger) (d *daemon, err error) {
	d = &daemon{logger: logger, health: health.NewMonitor()}
	defer func() {
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = d.shutdown(shutdownCtx)
			d = nil
		}
	}()

	registry := metric.NewMetricsRegistry()

	if cfg.NeedsNATS() {
		if d.nats, err = connectNATS(ctx, cfg.NATS, logger, registry.Metrics); err != nil {
			return d, err
		}
		mon, nc := d.health, d.nats
		mon.SetHealthy("nats", true, "connected")
		nc.OnHealthChange(func(healthy bool) {
			mon.SetHealthy("nats", healthy, nc.Status().String())
		})
	}

	src, err := openRemote(ctx, cfg.Remote, d.nats, logger)
	if err != nil {
		return d, err
	}
	if d.oplog, err = openOpLog(ctx, cfg.Storage, d.nats, logger); err != nil {
		return d, err
	}

	d.client, err = client.New(client.Dependencies{
		Remote:        src,
		Space:         cfg.Client.Space,
		OpLog:         d.oplog,
		FlushInterval: cfg.Client.FlushInterval,
		Sync:          cfg.Sync,
		CacheSize:     cfg.Client.CacheSize,
		Logger:        logger,
		Registry:      registry,
	})
	if err != nil {
		return d, fmt.Errorf("create client: %w", err)
	}
	if err = d.client.Start(ctx); err != nil {
		return d, fmt.Errorf("start client: %w", err)
	}
	d.health.SetHealthy("sync", true, "idle")
	d.client.OnEvent(trackSync(d.health))

	if err = d.startBridges(ctx, cfg.Gateway, registry.Metrics); err != nil {
		return d, err
	}

	if cfg.Metrics.Enabled {
		d.metrics = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		d.metrics.Handle("/health", d.health.Handler("graphsync"))
		if err = d.metrics.Start(); err != nil {
			return d, fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Metrics server listening", "address", d.metrics.Address())
	}
	return d, nil
}

func connectNATS(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger, m *metric.Metrics) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(m),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
	}
	if cfg.Name != "" {
		opts = append(opts, natsclient.WithName(cfg.Name))
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.Timeout))
	}
	switch {
	case cfg.CredsFile != "":
		opts = append(opts, natsclient.WithCredsFile(cfg.CredsFile))
	case cfg.Token != "":
		opts = append(opts, natsclient.WithToken(cfg.Token))
	case cfg.Username != "":
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	tlsConfig, err := tlsutil.Client(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("NATS TLS: %w", err)
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLS(tlsConfig))
	}

	nc, err := natsclient.NewClient(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("Connecting to NATS", "urls", cfg.URLs)
	if err := nc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := nc.WaitForConnection(connCtx); err != nil {
		_ = nc.Close(context.Background())
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nc, nil
}

func openRemote(ctx context.Context, cfg config.RemoteConfig, nc *natsclient.Client, logger *slog.Logger) (remote.Source, error) {
	switch cfg.Kind {
	case config.RemoteNATS:
		r, err := kvremote.Open(ctx, nc, cfg.Bucket,
			kvremote.WithLogger(logger),
			kvremote.WithRetry(cfg.Retry.ToRetryConfig()))
		if err != nil {
			return nil, fmt.Errorf("open NATS remote: %w", err)
		}
		return r, nil
	case config.RemoteSubgraph:
		opts := []subgraph.Option{
			subgraph.WithLogger(logger),
			subgraph.WithRetry(cfg.Retry.ToRetryConfig()),
		}
		if cfg.Timeout > 0 {
			opts = append(opts, subgraph.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		for k, v := range cfg.Headers {
			opts = append(opts, subgraph.WithHeader(k, v))
		}
		r, err := subgraph.New(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("open subgraph remote: %w", err)
		}
		return r, nil
	default:
		logger.Warn("Using in-memory remote; nothing is shared outside this process")
		return memory.New(), nil
	}
}

func openOpLog(ctx context.Context, cfg config.StorageConfig, nc *natsclient.Client, logger *slog.Logger) (storage.OpLog, error) {
	switch cfg.Kind {
	case config.StorageNATS:
		s, err := kvstore.Open(ctx, nc, cfg.Bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("open NATS op log: %w", err)
		}
		return s, nil
	case config.StorageSQLite:
		s, err := sqlitestore.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite op log: %w", err)
		}
		logger.Info("Persisting local ops", "path", cfg.Path)
		return s, nil
	default:
		return nil, nil
	}
}

func (d *daemon) startBridges(ctx context.Context, cfg config.GatewayConfig, m *metric.Metrics) error {
	target := d.client.Worker()

	if cfg.NATSBridge {
		b, err := natsbridge.New(cfg.Config, d.nats, target, d.logger, m)
		if err != nil {
			return fmt.Errorf("create NATS bridge: %w", err)
		}
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("start NATS bridge: %w", err)
		}
		d.client.OnEvent(b.Deliver)
		d.bridges = append(d.bridges, b)
		d.health.SetHealthy("bridge/nats", true, "serving "+cfg.CommandSubject)
	}

	if cfg.WSAddr != "" {
		s, err := wsbridge.New(cfg.Config, target, d.logger, m)
		if err != nil {
			return fmt.Errorf("create WebSocket bridge: %w", err)
		}
		tlsConfig, err := tlsutil.Server(cfg.TLS)
		if err != nil {
			return fmt.Errorf("WebSocket TLS: %w", err)
		}
		s.SetTLSConfig(tlsConfig)
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start WebSocket bridge: %w", err)
		}
		d.client.OnEvent(s.Deliver)
		d.bridges = append(d.bridges, s)
		d.health.SetHealthy("bridge/websocket", true, "serving "+s.Addr())
	}
	return nil
}

// shutdown stops components in reverse start order and reports every
// failure.
func (d *daemon) shutdown(ctx context.Context) error {
	var errs []error
	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if d.metrics != nil {
		errs = append(errs, d.metrics.Stop(ctx))
	}
	for i := len(d.bridges) - 1; i >= 0; i-- {
		errs = append(errs, d.bridges[i].Stop(timeout))
	}
	if d.client != nil {
		errs = append(errs, d.client.Close(ctx))
	}
	if d.oplog != nil {
		errs = append(errs, d.oplog.Close())
	}
	if d.nats != nil {
		errs = append(errs, d.nats.Close(ctx))
	}

	err := stderrors.Join(errs...)
	if err != nil {
		d.logger.Error("Shutdown finished with errors", "error", err)
	}
	return err
}

// Package main implements the graphsync daemon: a local-first graph client
// whose sync surface is exposed to host applications over NATS and
// WebSocket.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360/graphsync/client"
	"github.com/c360/graphsync/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "graphsync"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(stdout, cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if cli.Validate {
		logger.Info("Configuration is valid", "remote", cfg.Remote.Kind, "storage", cfg.Storage.Kind)
		return nil
	}

	logger.Info("Starting graphsync",
		"version", Version,
		"build_time", BuildTime,
		"config", strings.Join(cli.ConfigPaths, ","),
		"space", cfg.Client.Space,
		"remote", cfg.Remote.Kind,
		"storage", cfg.Storage.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := start(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cli.PublishInterval > 0 {
		go publishLoop(ctx, d.client, cli.PublishInterval, logger)
	}

	logger.Info("graphsync started")
	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer cancel()
	if err := d.shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("graphsync shutdown complete")
	return nil
}

// loadConfig layers the config files, applies environment and flag
// overrides, then validates.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cli.EnvPrefix != "" {
		loader.SetEnvPrefix(cli.EnvPrefix)
	}
	for _, p := range cli.ConfigPaths {
		loader.AddLayer(p)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cli.Remote != "" {
		cfg.Remote.Kind = cli.Remote
	}
	if cli.Space != "" {
		cfg.Client.Space = cli.Space
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// publishLoop pushes pending local changes, then drops entries the remote
// already reflects.
func publishLoop(ctx context.Context, c *client.Client, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PruneSynced()
			triples, relations := c.Store().Snapshot().Pending()
			if len(triples)+len(relations) == 0 {
				continue
			}
			if err := c.Publish(); err != nil {
				logger.Warn("Failed to queue publish", "error", err)
			}
		}
	}
}

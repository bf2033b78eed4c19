package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/c360/graphsync/config"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPaths     []string
	Remote          string
	Space           string
	EnvPrefix       string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	PublishInterval time.Duration
	ShowVersion     bool
	Validate        bool
}

type layerFlag []string

func (l *layerFlag) String() string { return fmt.Sprint(*l) }

func (l *layerFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var layers layerFlag
	fs.Var(&layers, "config",
		"Configuration file, JSON or YAML; repeat to layer overrides (env: GRAPHSYNC_CONFIG)")
	fs.Var(&layers, "c", "Shorthand for --config")

	fs.StringVar(&cfg.Remote, "remote", getEnv("GRAPHSYNC_REMOTE", ""),
		"Override remote.kind: memory, nats, subgraph (env: GRAPHSYNC_REMOTE)")
	fs.StringVar(&cfg.Space, "space", "",
		"Override client.space")
	fs.StringVar(&cfg.EnvPrefix, "env-prefix", config.DefaultEnvPrefix,
		"Prefix of environment variables that override config files, e.g. <prefix>_SPACE")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("GRAPHSYNC_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: GRAPHSYNC_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("GRAPHSYNC_LOG_FORMAT", "json"),
		"Log format: json, text (env: GRAPHSYNC_LOG_FORMAT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("GRAPHSYNC_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: GRAPHSYNC_SHUTDOWN_TIMEOUT)")
	fs.DurationVar(&cfg.PublishInterval, "publish-interval",
		getEnvDuration("GRAPHSYNC_PUBLISH_INTERVAL", 0),
		"Push pending local changes and prune synced ones on this interval, 0 to disable (env: GRAPHSYNC_PUBLISH_INTERVAL)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printUsage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ConfigPaths = layers
	if len(cfg.ConfigPaths) == 0 {
		if p := os.Getenv("GRAPHSYNC_CONFIG"); p != "" {
			cfg.ConfigPaths = []string{p}
		}
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	for _, p := range cfg.ConfigPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file not found: %s", p)
		}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive: %s", cfg.ShutdownTimeout)
	}
	if cfg.PublishInterval < 0 {
		return fmt.Errorf("publish interval must not be negative: %s", cfg.PublishInterval)
	}
	return nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - local-first knowledge graph sync

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # In-memory remote, no persistence
  %[1]s --remote=memory --space=dev --log-format=text

  # Base config plus local overrides
  %[1]s -c /etc/graphsync/graphsync.yaml -c ./local.json

  # Validate configuration only
  %[1]s -c graphsync.yaml --validate

Version: %[2]s
Build: %[3]s
`, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

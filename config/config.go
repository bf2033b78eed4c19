package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/gateway"
	"github.com/c360/graphsync/pkg/tlsutil"
	"github.com/c360/graphsync/syncworker"
)

// Remote kinds
const (
	RemoteMemory   = "memory"   // In-process remote, nothing leaves the process
	RemoteNATS     = "nats"     // JetStream KV bucket
	RemoteSubgraph = "subgraph" // GraphQL over HTTP
)

// Storage kinds
const (
	StorageNone   = "none"   // Local ops live in memory only
	StorageNATS   = "nats"   // JetStream KV bucket
	StorageSQLite = "sqlite" // Single-file SQLite database
)

// Config represents the complete daemon configuration.
type Config struct {
	Client  ClientConfig      `json:"client" yaml:"client"`
	Remote  RemoteConfig      `json:"remote" yaml:"remote"`
	Storage StorageConfig     `json:"storage" yaml:"storage"`
	NATS    NATSConfig        `json:"nats" yaml:"nats"`
	Sync    syncworker.Config `json:"sync" yaml:"sync"`
	Gateway GatewayConfig     `json:"gateway" yaml:"gateway"`
	Metrics MetricsConfig     `json:"metrics" yaml:"metrics"`
}

// ClientConfig defines the client identity and local caches.
type ClientConfig struct {
	// Space is the default space for local writes.
	Space string `json:"space" yaml:"space"`

	// CacheSize bounds the remote read cache (entities).
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`

	// FlushInterval batches op-log writes. Zero writes through.
	FlushInterval time.Duration `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"`
}

// RemoteConfig selects and tunes the remote graph.
type RemoteConfig struct {
	Kind string `json:"kind" yaml:"kind"`

	// URL is the GraphQL endpoint for the subgraph kind.
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Bucket is the KV bucket for the nats kind.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Retry applies to idempotent reads only; pushes are never retried.
	Retry errors.RetryConfig `json:"retry" yaml:"retry"`
}

// StorageConfig selects where the local op log is persisted.
type StorageConfig struct {
	Kind   string `json:"kind" yaml:"kind"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty" yaml:"urls,omitempty"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Username      string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string        `json:"password,omitempty" yaml:"password,omitempty"`
	Token         string        `json:"token,omitempty" yaml:"token,omitempty"`
	CredsFile     string        `json:"creds_file,omitempty" yaml:"creds_file,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls" yaml:"tls"`
}

// GatewayConfig enables the host bridges.
type GatewayConfig struct {
	// NATSBridge serves commands on gateway.CommandSubject.
	NATSBridge bool `json:"nats_bridge" yaml:"nats_bridge"`

	// TLS applies to the WebSocket listener.
	TLS tlsutil.ServerConfig `json:"tls" yaml:"tls"`

	gateway.Config `yaml:",inline"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port,omitempty" yaml:"port,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a configuration that runs fully in memory.
func Default() *Config {
	return &Config{
		Client: ClientConfig{CacheSize: 10000},
		Remote: RemoteConfig{
			Kind:    RemoteMemory,
			Timeout: 10 * time.Second,
			Retry:   errors.DefaultRetryConfig(),
		},
		Storage: StorageConfig{Kind: StorageNone},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Name:          "graphsync",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
		Sync:    syncworker.DefaultConfig(),
		Gateway: GatewayConfig{Config: gateway.DefaultConfig()},
		Metrics: MetricsConfig{Port: 9090, Path: "/metrics"},
	}
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Validate checks the configuration and fills zero values with defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Client.Space) == "" {
		return invalid("client.space is required")
	}
	if c.Client.CacheSize < 0 {
		return invalid("client.cache_size must not be negative")
	}
	if c.Client.FlushInterval < 0 {
		return invalid("client.flush_interval must not be negative")
	}

	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.NeedsNATS() && len(c.NATS.URLs) == 0 {
		return invalid("nats.urls is required when a NATS remote, store or bridge is configured")
	}

	if err := c.Sync.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "sync")
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	if t := c.Gateway.TLS; t.Enabled && (t.CertFile == "" || t.KeyFile == "") {
		return invalid("gateway.tls needs cert_file and key_file")
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return invalid(fmt.Sprintf("metrics.port out of range: %d", c.Metrics.Port))
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	return nil
}

func (c *Config) validateRemote() error {
	r := &c.Remote
	r.Kind = strings.ToLower(r.Kind)
	switch r.Kind {
	case "":
		r.Kind = RemoteMemory
	case RemoteMemory, RemoteNATS:
	case RemoteSubgraph:
		if r.URL == "" {
			return invalid("remote.url is required for the subgraph remote")
		}
		if !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://") {
			return invalid(fmt.Sprintf("remote.url must be http(s): %s", r.URL))
		}
	default:
		return invalid(fmt.Sprintf("unknown remote.kind %q", r.Kind))
	}
	if r.Timeout < 0 {
		return invalid("remote.timeout must not be negative")
	}
	if r.Retry.MaxRetries < 0 || r.Retry.InitialDelay < 0 || r.Retry.MaxDelay < 0 || r.Retry.BackoffFactor < 0 {
		return invalid("remote.retry values must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := &c.Storage
	s.Kind = strings.ToLower(s.Kind)
	switch s.Kind {
	case "":
		s.Kind = StorageNone
	case StorageNone, StorageNATS:
	case StorageSQLite:
		if s.Path == "" {
			return invalid("storage.path is required for sqlite storage")
		}
	default:
		return invalid(fmt.Sprintf("unknown storage.kind %q", s.Kind))
	}
	return nil
}

// NeedsNATS reports whether any configured component uses the NATS
// connection.
func (c *Config) NeedsNATS() bool {
	return c.Remote.Kind == RemoteNATS || c.Storage.Kind == StorageNATS || c.Gateway.NATSBridge
}

// String returns a JSON representation with secrets masked.
func (c *Config) String() string {
	masked := c.Clone()
	for _, s := range []*string{&masked.NATS.Password, &masked.NATS.Token} {
		if *s != "" {
			*s = "***"
		}
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", msg)
}

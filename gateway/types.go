package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360/graphsync/errors"
)

// Config holds configuration for the gateway transports.
type Config struct {
	// CommandSubject is the NATS subject commands are received on.
	CommandSubject string `json:"command_subject" yaml:"command_subject"`

	// EventPrefix prefixes the per-kind event subjects.
	EventPrefix string `json:"event_prefix" yaml:"event_prefix"`

	// WSAddr is the listen address of the WebSocket bridge. Empty disables it.
	WSAddr string `json:"ws_addr,omitempty" yaml:"ws_addr,omitempty"`

	// WSPath is the WebSocket route (default: /ws).
	WSPath string `json:"ws_path,omitempty" yaml:"ws_path,omitempty"`

	// AllowedOrigins lists origins the WebSocket bridge accepts. Empty
	// accepts same-origin requests only; use ["*"] for development.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`

	// MaxMessageSize limits inbound messages in bytes (default: 1MB).
	MaxMessageSize int64 `json:"max_message_size,omitempty" yaml:"max_message_size,omitempty"`

	// WriteTimeout bounds a single outbound write (default: 10s).
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	return Config{
		CommandSubject: "graphsync.cmd",
		EventPrefix:    "graphsync.evt",
		WSPath:         "/ws",
		MaxMessageSize: 1024 * 1024,
		WriteTimeout:   10 * time.Second,
	}
}

// Validate ensures the gateway configuration is valid and fills defaults.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.CommandSubject == "" {
		c.CommandSubject = d.CommandSubject
	}
	if c.EventPrefix == "" {
		c.EventPrefix = d.EventPrefix
	}
	if strings.ContainsAny(c.CommandSubject, " \t") || strings.ContainsAny(c.EventPrefix, " \t*>") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"subjects must not contain whitespace and event_prefix must not contain wildcards")
	}
	if strings.HasSuffix(c.EventPrefix, ".") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"event_prefix must not end with '.'")
	}

	if c.WSPath == "" {
		c.WSPath = d.WSPath
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("ws_path must start with '/': %s", c.WSPath))
	}

	if c.MaxMessageSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_message_size cannot be negative")
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.MaxMessageSize > 100*1024*1024 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_message_size cannot exceed 100MB")
	}

	if c.WriteTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"write_timeout cannot be negative")
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return nil
}

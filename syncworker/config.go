package syncworker

import (
	"fmt"
	"time"
)

// Config tunes the worker.
type Config struct {
	// Workers bounds concurrent commands and concurrent pushes in a drain.
	Workers   int `json:"workers" yaml:"workers"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`

	// EventBuffer sizes the Events channel.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer"`

	// FanoutRate limits background syncs of related entities per second.
	// Zero means unlimited.
	FanoutRate  float64 `json:"fanout_rate" yaml:"fanout_rate"`
	FanoutBurst int     `json:"fanout_burst" yaml:"fanout_burst"`

	// MaxDepth stops fan-out that many hops from an explicit sync. Zero
	// means no limit; fan-out then ends once every reachable id is synced.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// FetchTimeout bounds one entity fetch. Zero disables.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	// StopTimeout bounds draining queued commands on shutdown.
	StopTimeout time.Duration `json:"stop_timeout" yaml:"stop_timeout"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Workers:      8,
		QueueSize:    1024,
		EventBuffer:  256,
		FanoutRate:   50,
		FanoutBurst:  10,
		FetchTimeout: 30 * time.Second,
		StopTimeout:  10 * time.Second,
	}
}

// Validate rejects negative values and fills zero sizes with defaults.
func (c *Config) Validate() error {
	if c.Workers < 0 || c.QueueSize < 0 || c.EventBuffer < 0 || c.FanoutBurst < 0 || c.MaxDepth < 0 {
		return fmt.Errorf("sizes must not be negative")
	}
	if c.FanoutRate < 0 {
		return fmt.Errorf("fanout_rate must not be negative")
	}
	d := DefaultConfig()
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize == 0 {
		c.QueueSize = d.QueueSize
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = d.EventBuffer
	}
	if c.FanoutBurst == 0 {
		c.FanoutBurst = d.FanoutBurst
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = d.StopTimeout
	}
	return nil
}

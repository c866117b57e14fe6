package server

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/conduit/kernel"
)

const (
	defaultListenAddr     = ":8080"
	defaultEventRetention = 1024
	defaultCallTimeout    = 60 * time.Second
	defaultIdleTimeout    = 10 * time.Minute
	defaultSweepInterval  = time.Minute
	defaultKeepalive      = 30 * time.Second
	defaultShutdownGrace  = 15 * time.Second
)

// Config holds initialization parameters for the server and its subsystems.
// The kernel section delegates to the kernel package's own config.
type Config struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	ServerName string `json:"server_name,omitempty"`

	// Observer names the logging-side observer from the observability
	// registry ("slog", "noop", or anything installed via RegisterObserver).
	// The Prometheus counter is always attached alongside it.
	Observer string `json:"observer,omitempty"`

	// MaxSessions caps concurrently attached sessions; zero means unlimited.
	MaxSessions    int           `json:"max_sessions,omitempty"`
	EventRetention int           `json:"event_retention,omitempty"`
	CallTimeout    time.Duration `json:"call_timeout,omitempty"`
	IdleTimeout    time.Duration `json:"idle_timeout,omitempty"`
	SweepInterval  time.Duration `json:"sweep_interval,omitempty"`
	Keepalive      time.Duration `json:"keepalive,omitempty"`
	ShutdownGrace  time.Duration `json:"shutdown_grace,omitempty"`

	Kernel kernel.Config `json:"kernel"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     defaultListenAddr,
		ServerName:     "conduit",
		Observer:       "slog",
		EventRetention: defaultEventRetention,
		CallTimeout:    defaultCallTimeout,
		IdleTimeout:    defaultIdleTimeout,
		SweepInterval:  defaultSweepInterval,
		Keepalive:      defaultKeepalive,
		ShutdownGrace:  defaultShutdownGrace,
		Kernel:         kernel.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to the kernel
// section's Merge method.
func (c *Config) Merge(source *Config) {
	if source.ListenAddr != "" {
		c.ListenAddr = source.ListenAddr
	}
	if source.ServerName != "" {
		c.ServerName = source.ServerName
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.MaxSessions > 0 {
		c.MaxSessions = source.MaxSessions
	}
	if source.EventRetention > 0 {
		c.EventRetention = source.EventRetention
	}
	if source.CallTimeout > 0 {
		c.CallTimeout = source.CallTimeout
	}
	if source.IdleTimeout > 0 {
		c.IdleTimeout = source.IdleTimeout
	}
	if source.SweepInterval > 0 {
		c.SweepInterval = source.SweepInterval
	}
	if source.Keepalive > 0 {
		c.Keepalive = source.Keepalive
	}
	if source.ShutdownGrace > 0 {
		c.ShutdownGrace = source.ShutdownGrace
	}
	c.Kernel.Merge(&source.Kernel)
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

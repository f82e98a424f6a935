// Package config loads the console configuration from a TOML file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	API           API           `toml:"api"`
	Push          Push          `toml:"push"`
	Feed          Feed          `toml:"feed"`
	Snapshot      Snapshot      `toml:"snapshot"`
	Notifications Notifications `toml:"notifications"`
	Log           Log           `toml:"log"`
}

// API configures the REST backend used for the bulk-load fallback and
// the send flow.
type API struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (a API) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Push configures the push socket and its reconnect policy.
type Push struct {
	URL         string `toml:"url"`
	MaxAttempts int    `toml:"max_attempts"`
	BaseDelayMS int    `toml:"base_delay_ms"`
}

// BaseDelay returns the linear backoff base as a duration.
func (p Push) BaseDelay() time.Duration {
	if p.BaseDelayMS <= 0 {
		return time.Second
	}
	return time.Duration(p.BaseDelayMS) * time.Millisecond
}

// Feed configures the change-feed subscription endpoint and its REST
// query surface used as the primary bulk-load source.
type Feed struct {
	URL     string `toml:"url"`      // websocket endpoint
	RestURL string `toml:"rest_url"` // row query endpoint
	Key     string `toml:"key"`
}

// Snapshot bounds the bulk load.
type Snapshot struct {
	ContactCap int `toml:"contact_cap"` // conversations seeded per load
	MessageCap int `toml:"message_cap"` // messages fetched per conversation
}

// Notifications bounds the notification history.
type Notifications struct {
	HistoryCap int `toml:"history_cap"`
}

// Log configures the log file; empty path logs to stderr only.
type Log struct {
	Path string `toml:"path"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Push: Push{
			URL:         "ws://localhost:8000/ws",
			MaxAttempts: 5,
			BaseDelayMS: 1000,
		},
		Snapshot: Snapshot{
			ContactCap: 10,
			MessageCap: 100,
		},
		Notifications: Notifications{
			HistoryCap: 50,
		},
	}
}

// Load reads config from the given path, merged over Default. A missing
// file is an error; use Default directly for an unconfigured run.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Package config provides unified configuration loading for hopfield.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSide is the reference grid side length (35x35 = 1225 neurons).
const DefaultSide = 35

// HopfieldConfig contains all hopfield configuration settings.
type HopfieldConfig struct {
	// Network contains settings for the associative-memory engine.
	Network NetworkConfig `json:"network" yaml:"network"`

	// Server contains settings for the HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// History contains settings for the operation journal.
	History HistoryConfig `json:"history" yaml:"history"`

	// RateLimit toggles per-operation rate limiting on the HTTP and MCP surfaces.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Logging contains settings for operational logging and recall traces.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// NetworkConfig configures the engine. The grid side is fixed for the
// lifetime of the process.
type NetworkConfig struct {
	// Side is the grid side length; the network has Side*Side neurons.
	Side int `json:"side" yaml:"side"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Use "localhost:0" for an OS-assigned port.
	Addr string `json:"addr" yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown after the context is cancelled.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// HistoryConfig configures the operation journal.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty keeps the journal in memory,
	// so it lives and dies with the process like the network itself.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// RateLimitConfig configures request rate limiting.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LoggingConfig configures hopfield's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables recall traces in TraceDir; "trace" adds full vectors.
	Level string `json:"level" yaml:"level"`

	// TraceDir is where recalls.jsonl is written. Supports ${VAR} syntax.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// Default returns a HopfieldConfig with sensible defaults.
func Default() *HopfieldConfig {
	return &HopfieldConfig{
		Network: NetworkConfig{
			Side: DefaultSide,
		},
		Server: ServerConfig{
			Addr:            "localhost:3000",
			ShutdownTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.hopfield/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hopfield", "config.yaml"), nil
}

// Load loads configuration from path, or from the default location when
// path is empty, then applies environment variables.
// Order: defaults -> config file -> environment variables.
// An explicit path that does not exist is an error; a missing default file is not.
func Load(path string) (*HopfieldConfig, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	} else if defaultPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(defaultPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*HopfieldConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Logging.TraceDir = expandEnvVars(config.Logging.TraceDir)
	config.History.Path = expandEnvVars(config.History.Path)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *HopfieldConfig) Validate() error {
	if c.Network.Side < 1 {
		return fmt.Errorf("network.side must be positive, got %d", c.Network.Side)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be non-negative, got %v", c.Server.ShutdownTimeout)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *HopfieldConfig) {
	if v := os.Getenv("HOPFIELD_SIDE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Network.Side = n
		}
	}

	if v := os.Getenv("HOPFIELD_ADDR"); v != "" {
		config.Server.Addr = v
	}

	if v := os.Getenv("HOPFIELD_HISTORY_PATH"); v != "" {
		config.History.Path = v
	}

	if v := os.Getenv("HOPFIELD_RATE_LIMIT"); v != "" {
		config.RateLimit.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("HOPFIELD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("HOPFIELD_TRACE_DIR"); v != "" {
		config.Logging.TraceDir = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

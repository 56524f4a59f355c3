// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; secrets go to OS keychain.
//
// The JSON file in the config dir is the persistent layer. A YAML file given
// with --config is overlaid on top of it, then environment overrides apply.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"convtrack/cli/internal/xdg"
)

// Transport names accepted in Config.Transport.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
	TransportGRPC      = "grpc"
)

// Store kinds accepted in StoreConfig.Kind.
const (
	StoreBackend  = "backend"
	StorePostgres = "postgres"
	StoreFile     = "file"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel       string        `json:"log_level" yaml:"log_level"`
	Backend        BackendConfig `json:"backend" yaml:"backend"`
	SourceType     string        `json:"source_type" yaml:"source_type"`
	Transport      string        `json:"transport" yaml:"transport"`
	PollIntervalMs int           `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	GraceDelayMs   int           `json:"grace_delay_ms" yaml:"grace_delay_ms"`
	Store          StoreConfig   `json:"store" yaml:"store"`
}

// BackendConfig locates the conversion backend.
type BackendConfig struct {
	URL            string `json:"url" yaml:"url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	GRPCAddress    string `json:"grpc_address" yaml:"grpc_address"`
}

// StoreConfig selects where schema transaction ids are persisted. The
// PostgreSQL DSN is kept in the keychain unless provided via environment.
type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path,omitempty" yaml:"path"`
	DSN  string `json:"-" yaml:"-"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		LogLevel:       "info",
		Backend:        BackendConfig{URL: "http://localhost:8000", TimeoutSeconds: 30},
		SourceType:     "oracle",
		Transport:      TransportSSE,
		PollIntervalMs: 3000,
		GraceDelayMs:   500,
		Store:          StoreConfig{Kind: StoreBackend},
	}
}

// PollInterval is the status poll cadence.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// GraceDelay is how long a completed stream stays open for trailing lines.
func (c Config) GraceDelay() time.Duration {
	return time.Duration(c.GraceDelayMs) * time.Millisecond
}

// Timeout is the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// Validate rejects values the CLI cannot run with.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportSSE, TransportWebSocket, TransportGRPC:
	default:
		return fmt.Errorf("unknown transport %q (use sse, websocket or grpc)", c.Transport)
	}
	switch c.Store.Kind {
	case StoreBackend, StorePostgres, StoreFile:
	default:
		return fmt.Errorf("unknown store kind %q (use backend, postgres or file)", c.Store.Kind)
	}
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("backend url is required")
	}
	if c.PollIntervalMs <= 0 {
		return errors.New("poll_interval_ms must be positive")
	}
	if c.GraceDelayMs < 0 {
		return errors.New("grace_delay_ms must not be negative")
	}
	return nil
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults. Zero fields in
// the file keep their defaults.
func Load() (Config, error) {
	c := Defaults()
	p, err := Path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&c)
			return c, nil
		}
		return c, err
	}
	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return c, fmt.Errorf("parsing %s: %w", p, err)
	}
	c.overlay(file)
	applyEnv(&c)
	return c, nil
}

// LoadFile overlays a YAML file onto c. Values missing from the file are kept.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	c.overlay(file)
	return nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func (c *Config) overlay(f Config) {
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&c.LogLevel, f.LogLevel)
	setIf(&c.Backend.URL, f.Backend.URL)
	setIf(&c.Backend.GRPCAddress, f.Backend.GRPCAddress)
	setIf(&c.SourceType, f.SourceType)
	setIf(&c.Transport, f.Transport)
	setIf(&c.Store.Kind, f.Store.Kind)
	setIf(&c.Store.Path, f.Store.Path)
	if f.Backend.TimeoutSeconds > 0 {
		c.Backend.TimeoutSeconds = f.Backend.TimeoutSeconds
	}
	if f.PollIntervalMs > 0 {
		c.PollIntervalMs = f.PollIntervalMs
	}
	if f.GraceDelayMs > 0 {
		c.GraceDelayMs = f.GraceDelayMs
	}
}

func applyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv("CONVTRACK_BACKEND_URL")); v != "" {
		c.Backend.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("CONVTRACK_STORE_DSN")); v != "" {
		c.Store.DSN = v
	}
}

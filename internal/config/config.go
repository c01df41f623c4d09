// ABOUTME: Configuration loading and parsing for hawkgate
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/hawkgate/internal/hawk"
)

// Defaults applied to fields left empty.
const (
	DefaultHTTPAddr       = "localhost:8080"
	DefaultTokenHeader    = "Hawk-Session-Token"
	DefaultMetricsPath    = "/metrics"
	DefaultNonceCacheSize = 100_000
	DefaultTimestampSkew  = 60 * time.Second
)

// Config represents the complete hawkgate configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Hawk     HawkConfig     `yaml:"hawk" toml:"hawk"`
	Sessions SessionsConfig `yaml:"sessions" toml:"sessions"`
	Routes   []RouteConfig  `yaml:"routes" toml:"routes"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// HawkConfig holds signature verification settings
type HawkConfig struct {
	Algorithms      []string `yaml:"algorithms" toml:"algorithms"`
	VerifyPayload   bool     `yaml:"verify_payload" toml:"verify_payload"`
	MaxPayloadBytes int64    `yaml:"max_payload_bytes" toml:"max_payload_bytes"`
	HostHeader      string   `yaml:"host_header" toml:"host_header"` // e.g. X-Forwarded-Host behind a proxy
	NonceCacheSize  int      `yaml:"nonce_cache_size" toml:"nonce_cache_size"`

	TimestampSkew   time.Duration `yaml:"-" toml:"-"`
	LocaltimeOffset time.Duration `yaml:"-" toml:"-"`
	NonceWindow     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimestampSkewRaw   string `yaml:"timestamp_skew" toml:"timestamp_skew"`
	LocaltimeOffsetRaw string `yaml:"localtime_offset" toml:"localtime_offset"`
	NonceWindowRaw     string `yaml:"nonce_window" toml:"nonce_window"`
}

// SessionsConfig holds session token settings
type SessionsConfig struct {
	Algorithm   string `yaml:"algorithm" toml:"algorithm"`
	TokenHeader string `yaml:"token_header" toml:"token_header"`
}

// RouteConfig declares one protected route
type RouteConfig struct {
	Path       string `yaml:"path" toml:"path"`
	AutoCreate bool   `yaml:"auto_create" toml:"auto_create"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// DefaultRoutes are mounted when no routes are configured.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{Path: "/require-session"},
		{Path: "/require-or-create-session", AutoCreate: true},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes raw configuration content. It performs the same expansion,
// defaulting and validation as Load.
func Parse(data []byte, isTOML bool) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if len(c.Hawk.Algorithms) == 0 {
		c.Hawk.Algorithms = []string{string(hawk.SHA256)}
	}
	if c.Hawk.TimestampSkew == 0 {
		c.Hawk.TimestampSkew = DefaultTimestampSkew
	}
	// A header stays acceptable for skew on either side of its ts.
	if c.Hawk.NonceWindow == 0 {
		c.Hawk.NonceWindow = 2 * c.Hawk.TimestampSkew
	}
	if c.Hawk.NonceCacheSize == 0 {
		c.Hawk.NonceCacheSize = DefaultNonceCacheSize
	}
	if c.Hawk.MaxPayloadBytes == 0 {
		c.Hawk.MaxPayloadBytes = hawk.DefaultMaxPayloadBytes
	}
	if c.Sessions.Algorithm == "" {
		c.Sessions.Algorithm = c.Hawk.Algorithms[0]
	}
	if c.Sessions.TokenHeader == "" {
		c.Sessions.TokenHeader = DefaultTokenHeader
	}
	if len(c.Routes) == 0 {
		c.Routes = DefaultRoutes()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	algs, err := c.Hawk.ParsedAlgorithms()
	if err != nil {
		return err
	}
	sessionAlg, err := hawk.ParseAlgorithm(c.Sessions.Algorithm)
	if err != nil {
		return fmt.Errorf("sessions.algorithm: %w", err)
	}
	allowed := false
	for _, a := range algs {
		allowed = allowed || a == sessionAlg
	}
	if !allowed {
		return fmt.Errorf("sessions.algorithm %q is not in hawk.algorithms", c.Sessions.Algorithm)
	}

	if c.Hawk.TimestampSkew < 0 {
		return fmt.Errorf("hawk.timestamp_skew must not be negative")
	}
	if c.Hawk.NonceWindow < 2*c.Hawk.TimestampSkew {
		return fmt.Errorf("hawk.nonce_window must be at least twice hawk.timestamp_skew")
	}
	if c.Hawk.NonceCacheSize < 0 {
		return fmt.Errorf("hawk.nonce_cache_size must not be negative")
	}
	if c.Hawk.MaxPayloadBytes < 0 {
		return fmt.Errorf("hawk.max_payload_bytes must not be negative")
	}

	if strings.ContainsAny(c.Sessions.TokenHeader, " :\t") {
		return fmt.Errorf("sessions.token_header %q is not a valid header name", c.Sessions.TokenHeader)
	}

	seen := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("routes[%d].path must start with /", i)
		}
		if strings.ContainsAny(r.Path, " \t{}") {
			return fmt.Errorf("routes[%d].path %q must be a literal path", i, r.Path)
		}
		if seen[r.Path] {
			return fmt.Errorf("routes[%d].path %q is duplicated", i, r.Path)
		}
		if r.Path == "/health" || strings.HasPrefix(r.Path, "/health/") || (c.Metrics.Enabled && r.Path == c.Metrics.Path) {
			return fmt.Errorf("routes[%d].path %q collides with a built-in endpoint", i, r.Path)
		}
		seen[r.Path] = true
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	return nil
}

// ParsedAlgorithms returns the allow-list as hawk algorithms.
func (h HawkConfig) ParsedAlgorithms() ([]hawk.Algorithm, error) {
	algs := make([]hawk.Algorithm, 0, len(h.Algorithms))
	for _, name := range h.Algorithms {
		a, err := hawk.ParseAlgorithm(name)
		if err != nil {
			return nil, fmt.Errorf("hawk.algorithms: %w", err)
		}
		algs = append(algs, a)
	}
	return algs, nil
}

// VerifierOptions translates the section into hawk.Options.
func (h HawkConfig) VerifierOptions() (hawk.Options, error) {
	algs, err := h.ParsedAlgorithms()
	if err != nil {
		return hawk.Options{}, err
	}
	return hawk.Options{
		Algorithms:      algs,
		TimestampSkew:   h.TimestampSkew,
		LocaltimeOffset: h.LocaltimeOffset,
		VerifyPayload:   h.VerifyPayload,
		MaxPayloadBytes: h.MaxPayloadBytes,
		HostHeader:      h.HostHeader,
	}, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timestamp_skew", cfg.Hawk.TimestampSkewRaw, &cfg.Hawk.TimestampSkew},
		{"localtime_offset", cfg.Hawk.LocaltimeOffsetRaw, &cfg.Hawk.LocaltimeOffset},
		{"nonce_window", cfg.Hawk.NonceWindowRaw, &cfg.Hawk.NonceWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

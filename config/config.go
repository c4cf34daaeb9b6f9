package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the ledgerd runtime configuration. Files ending in .yaml or .yml
// are decoded as YAML; anything else as TOML.
type Config struct {
	ListenAddress   string        `toml:"ListenAddress" yaml:"listen"`
	DataDir         string        `toml:"DataDir" yaml:"dataDir"`
	GenesisFile     string        `toml:"GenesisFile" yaml:"genesisFile"`
	Environment     string        `toml:"Environment" yaml:"environment"`
	ReadTimeout     time.Duration `toml:"ReadTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `toml:"WriteTimeout" yaml:"writeTimeout"`
	IdleTimeout     time.Duration `toml:"IdleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `toml:"ShutdownTimeout" yaml:"shutdownTimeout"`

	Log       LogConfig       `toml:"log" yaml:"log"`
	EventLog  EventLogConfig  `toml:"eventlog" yaml:"eventLog"`
	Auth      AuthConfig      `toml:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `toml:"ratelimit" yaml:"rateLimit"`
	Telemetry TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
}

type LogConfig struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// EventLogConfig selects the journal backend. An empty driver disables the
// journal.
type EventLogConfig struct {
	Driver string `toml:"Driver" yaml:"driver"`
	DSN    string `toml:"DSN" yaml:"dsn"`
}

type AuthConfig struct {
	HMACSecret    string        `toml:"HMACSecret" yaml:"hmacSecret"`
	HMACSecretEnv string        `toml:"HMACSecretEnv" yaml:"hmacSecretEnv"`
	Issuer        string        `toml:"Issuer" yaml:"issuer"`
	Audience      string        `toml:"Audience" yaml:"audience"`
	ClockSkew     time.Duration `toml:"ClockSkew" yaml:"clockSkew"`
	// AnonymousReads lets unauthenticated clients use the GET views.
	AnonymousReads bool `toml:"AnonymousReads" yaml:"anonymousReads"`
}

type RateLimitConfig struct {
	RatePerSecond float64 `toml:"RatePerSecond" yaml:"ratePerSecond"`
	Burst         int     `toml:"Burst" yaml:"burst"`
}

// TelemetryConfig points the OTLP/HTTP exporters at a collector. Headers is
// a comma separated list of key=value pairs.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
}

// Enabled reports whether any exporter is switched on.
func (t TelemetryConfig) Enabled() bool {
	return t.Traces || t.Metrics
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultSecretEnv names the variable the API token secret is read from.
	DefaultSecretEnv = "LEDGER_AUTH_SECRET"

	DefaultTelemetryEndpoint = "localhost:4318"
)

// Load reads the configuration at path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("config path must be provided")
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(trimmed)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		meta, err := toml.Decode(string(raw), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode config: unknown key %q", undecoded[0].String())
		}
	}
	cfg.applyDefaults(filepath.Dir(trimmed))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults(baseDir string) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./ledger-data"
	}
	if cfg.GenesisFile != "" && !filepath.IsAbs(cfg.GenesisFile) && baseDir != "" {
		cfg.GenesisFile = filepath.Join(baseDir, cfg.GenesisFile)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if strings.TrimSpace(cfg.Auth.HMACSecretEnv) == "" {
		cfg.Auth.HMACSecretEnv = DefaultSecretEnv
	}
	if cfg.Auth.HMACSecret == "" && cfg.Auth.HMACSecretEnv != "" {
		cfg.Auth.HMACSecret = os.Getenv(cfg.Auth.HMACSecretEnv)
	}
	if cfg.RateLimit.RatePerSecond > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.RatePerSecond)
		if cfg.RateLimit.Burst < 1 {
			cfg.RateLimit.Burst = 1
		}
	}
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	if cfg.Telemetry.Enabled() && cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = DefaultTelemetryEndpoint
	}
	cfg.EventLog.Driver = strings.ToLower(strings.TrimSpace(cfg.EventLog.Driver))
	if cfg.EventLog.Driver == DriverSQLite && strings.TrimSpace(cfg.EventLog.DSN) == "" {
		cfg.EventLog.DSN = filepath.Join(cfg.DataDir, "events.db")
	}
}

// StatePath is the leveldb directory under DataDir.
func (cfg *Config) StatePath() string {
	return filepath.Join(cfg.DataDir, "state")
}

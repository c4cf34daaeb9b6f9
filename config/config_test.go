package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "ledgerd.toml", `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/ledger"
GenesisFile = "genesis.json"
ReadTimeout = "5s"

[log]
Level = "debug"
File = "/var/log/ledgerd.log"

[eventlog]
Driver = "sqlite"

[auth]
HMACSecret = "`+testSecret+`"
Issuer = "ledger-ops"

[ratelimit]
RatePerSecond = 20.0

[telemetry]
Traces = true
Insecure = true
Headers = "api-key=abc"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress)
	}
	if cfg.ReadTimeout != 5*time.Second || cfg.WriteTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts %s/%s", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.GenesisFile != filepath.Join(filepath.Dir(path), "genesis.json") {
		t.Fatalf("genesis path should resolve next to the config, got %q", cfg.GenesisFile)
	}
	if cfg.EventLog.DSN != filepath.Join("/var/lib/ledger", "events.db") {
		t.Fatalf("unexpected sqlite dsn %q", cfg.EventLog.DSN)
	}
	if cfg.RateLimit.Burst != 20 {
		t.Fatalf("expected burst default of 20, got %d", cfg.RateLimit.Burst)
	}
	if !cfg.Telemetry.Enabled() || cfg.Telemetry.Endpoint != DefaultTelemetryEndpoint {
		t.Fatalf("expected traces with default endpoint, got %+v", cfg.Telemetry)
	}
	if cfg.StatePath() != filepath.Join("/var/lib/ledger", "state") {
		t.Fatalf("unexpected state path %q", cfg.StatePath())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "ledgerd.yaml", `listen: ":7000"
genesisFile: /etc/ledger/genesis.json
environment: dev
shutdownTimeout: 30s
eventLog:
  driver: postgres
  dsn: postgres://ledger@localhost/ledger
auth:
  clockSkew: 1m
  anonymousReads: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownTimeout != 30*time.Second || cfg.Auth.ClockSkew != time.Minute {
		t.Fatalf("unexpected durations %s/%s", cfg.ShutdownTimeout, cfg.Auth.ClockSkew)
	}
	if !cfg.IsDev() || !cfg.Auth.AnonymousReads {
		t.Fatalf("expected dev environment with anonymous reads")
	}
	if cfg.Telemetry.Enabled() || cfg.Telemetry.Endpoint != "" {
		t.Fatalf("telemetry should stay off without a section, got %+v", cfg.Telemetry)
	}
	if cfg.GenesisFile != "/etc/ledger/genesis.json" {
		t.Fatalf("absolute genesis path changed: %q", cfg.GenesisFile)
	}
}

func TestLoadRejectsUnknownTOMLKeys(t *testing.T) {
	path := writeFile(t, "ledgerd.toml", `GenesisFile = "g.json"
Environment = "dev"
Bogus = 1
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "Bogus") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{GenesisFile: "genesis.json", Auth: AuthConfig{HMACSecret: testSecret}}
		cfg.applyDefaults("")
		return cfg
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	cfg := base()
	cfg.Auth.HMACSecret = ""
	if err := cfg.Validate(); !errors.Is(err, ErrAuthSecretRequired) {
		t.Fatalf("expected ErrAuthSecretRequired, got %v", err)
	}
	cfg.Environment = "dev"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev config without secret should validate: %v", err)
	}

	cases := map[string]func(*Config){
		"short secret":    func(c *Config) { c.Auth.HMACSecret = "short" },
		"missing genesis": func(c *Config) { c.GenesisFile = "" },
		"bad level":       func(c *Config) { c.Log.Level = "loud" },
		"bad driver":      func(c *Config) { c.EventLog.Driver = "mysql" },
		"postgres no dsn": func(c *Config) { c.EventLog.Driver = DriverPostgres },
		"negative rate":   func(c *Config) { c.RateLimit.RatePerSecond = -1 },
		"endpoint scheme": func(c *Config) { c.Telemetry.Endpoint = "http://collector:4318" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSecretFromEnvironment(t *testing.T) {
	t.Setenv("LEDGER_TEST_SECRET", testSecret)
	cfg := &Config{GenesisFile: "g.json", Auth: AuthConfig{HMACSecretEnv: "LEDGER_TEST_SECRET"}}
	cfg.applyDefaults("")
	if cfg.Auth.HMACSecret != testSecret {
		t.Fatalf("expected secret from environment")
	}
}

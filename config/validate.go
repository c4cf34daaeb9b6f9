package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrAuthSecretRequired = errors.New("auth.hmacSecret must be set outside the dev environment")

// MinSecretLength bounds the HMAC secret used to verify caller tokens.
const MinSecretLength = 32

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.GenesisFile) == "" {
		return fmt.Errorf("genesisFile must be provided")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch cfg.EventLog.Driver {
	case "", DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(cfg.EventLog.DSN) == "" {
			return fmt.Errorf("eventlog.dsn must be provided for the postgres driver")
		}
	default:
		return fmt.Errorf("eventlog.driver %q not supported", cfg.EventLog.Driver)
	}
	secret := strings.TrimSpace(cfg.Auth.HMACSecret)
	if secret == "" && !cfg.IsDev() {
		return ErrAuthSecretRequired
	}
	if secret != "" && len(secret) < MinSecretLength {
		return fmt.Errorf("auth.hmacSecret must be at least %d bytes", MinSecretLength)
	}
	if cfg.RateLimit.RatePerSecond < 0 {
		return fmt.Errorf("ratelimit.ratePerSecond must not be negative")
	}
	if strings.Contains(cfg.Telemetry.Endpoint, "://") {
		return fmt.Errorf("telemetry.endpoint must be host:port without a scheme")
	}
	return nil
}

// IsDev reports whether the node runs in the dev environment.
func (cfg *Config) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Environment), "dev")
}

// ParseLevel maps a configured level name to slog.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

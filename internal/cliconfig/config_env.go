package cliconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig is the OFFSYNC_* environment surface.
type EnvConfig struct {
	StateDir         string        `env:"OFFSYNC_STATE_DIR"`
	Session          string        `env:"OFFSYNC_SESSION"`
	Backend          string        `env:"OFFSYNC_BACKEND"`
	ServiceURL       string        `env:"OFFSYNC_SERVICE_URL"`
	AuthKey          string        `env:"OFFSYNC_AUTH_KEY"`
	HTTPTimeout      time.Duration `env:"OFFSYNC_HTTP_TIMEOUT"`
	ConnectivityFile string        `env:"OFFSYNC_CONNECTIVITY_FILE"`
	RetryInitial     time.Duration `env:"OFFSYNC_RETRY"`
	RetryMax         time.Duration `env:"OFFSYNC_RETRY_MAX"`
}

// LoadEnvConfig parses the OFFSYNC_* variables.
func LoadEnvConfig() (EnvConfig, error) {
	var ec EnvConfig
	if err := env.Parse(&ec); err != nil {
		return ec, fmt.Errorf("parse env: %w", err)
	}
	return ec, nil
}

// ApplyEnvConfig applies configuration from environment variables (OFFSYNC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	ec, err := LoadEnvConfig()
	if err != nil {
		return err
	}
	s := newConfigSetter(changed)

	s.setString("state-dir", ec.StateDir, &cfg.StateDir)
	s.setString("session", ec.Session, &cfg.Session)
	s.setString("backend", ec.Backend, &cfg.Backend)
	s.setString("service-url", ec.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", ec.AuthKey, &cfg.AuthKey)
	s.setString("connectivity-file", ec.ConnectivityFile, &cfg.ConnectivityFile)

	s.setDuration("timeout", ec.HTTPTimeout, &cfg.HTTPTimeout)
	s.setDuration("retry", ec.RetryInitial, &cfg.RetryInitial)
	s.setDuration("retry-max", ec.RetryMax, &cfg.RetryMax)
	return nil
}

package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bft-labs/offsync/internal/domain"
)

// Storage backends selectable with --backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultSession is used when no session id is configured.
const DefaultSession = "default"

// Config holds CLI configuration for offsync.
type Config struct {
	StateDir string
	Session  string
	Backend  string

	ServiceURL  string
	AuthKey     string
	HTTPTimeout time.Duration

	// ConnectivityFile is watched by `offsync watch`; empty means always online.
	ConnectivityFile string

	RetryInitial time.Duration
	RetryMax     time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StateDir:    defaultStateDir(),
		Session:     DefaultSession,
		Backend:     BackendFile,
		HTTPTimeout: 15 * time.Second,
		RetryMax:    2 * time.Minute,
	}
}

func defaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".offsync", "data")
	}
	return ""
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("%w: state-dir is required", domain.ErrInvalidConfig)
	}
	if c.Session == "" {
		c.Session = DefaultSession
	}
	if err := domain.ValidateSessionID(c.Session); err != nil {
		return err
	}

	switch c.Backend {
	case "":
		c.Backend = BackendFile
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown backend %q (want %s or %s)", domain.ErrInvalidConfig, c.Backend, BackendFile, BackendSQLite)
	}

	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.RetryInitial < 0 {
		return fmt.Errorf("%w: retry must not be negative", domain.ErrInvalidConfig)
	}
	if c.RetryInitial > 0 && c.RetryMax < c.RetryInitial {
		c.RetryMax = c.RetryInitial
	}
	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.AuthKey != "" {
		c.AuthKey = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration sets a duration if positive and flag not changed.
func (s *configSetter) setDuration(flag string, value time.Duration, dst *time.Duration) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDurationString parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDurationString(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	StateDir         string `toml:"state_dir"`
	Session          string `toml:"session"`
	Backend          string `toml:"backend"`
	ServiceURL       string `toml:"service_url"`
	AuthKey          string `toml:"auth_key"`
	HTTPTimeout      string `toml:"http_timeout"`
	ConnectivityFile string `toml:"connectivity_file"`
	RetryInitial     string `toml:"retry_initial"`
	RetryMax         string `toml:"retry_max"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.offsync/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".offsync", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("session", fc.Session, &cfg.Session)
	s.setString("backend", fc.Backend, &cfg.Backend)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("connectivity-file", fc.ConnectivityFile, &cfg.ConnectivityFile)

	if err := s.setDurationString("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDurationString("retry", fc.RetryInitial, &cfg.RetryInitial); err != nil {
		return err
	}
	if err := s.setDurationString("retry-max", fc.RetryMax, &cfg.RetryMax); err != nil {
		return err
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

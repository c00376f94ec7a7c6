package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				StateDir:         "/var/lib/offsync",
				Session:          "account-7",
				Backend:          "sqlite",
				ServiceURL:       "https://api.example.com",
				AuthKey:          "secret",
				HTTPTimeout:      "30s",
				ConnectivityFile: "/run/net-status",
				RetryInitial:     "2s",
				RetryMax:         "1m",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				StateDir:         "/var/lib/offsync",
				Session:          "account-7",
				Backend:          "sqlite",
				ServiceURL:       "https://api.example.com",
				AuthKey:          "secret",
				HTTPTimeout:      30 * time.Second,
				ConnectivityFile: "/run/net-status",
				RetryInitial:     2 * time.Second,
				RetryMax:         time.Minute,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Session:     "file-session",
				HTTPTimeout: "1m",
			},
			changed: map[string]bool{"session": true, "timeout": true},
			initial: Config{
				Session:     "flag-session",
				HTTPTimeout: 5 * time.Second,
			},
			expected: Config{
				Session:     "flag-session",
				HTTPTimeout: 5 * time.Second,
			},
		},
		{
			name: "empty values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial: Config{
				Backend:     BackendFile,
				HTTPTimeout: 15 * time.Second,
			},
			expected: Config{
				Backend:     BackendFile,
				HTTPTimeout: 15 * time.Second,
			},
		},
		{
			name: "invalid duration",
			fileConfig: FileConfig{
				RetryInitial: "soon",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
state_dir = "/data/offsync"
session = "account-42"
backend = "sqlite"
service_url = "https://api.example.com"
http_timeout = "20s"
retry_initial = "3s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.StateDir != "/data/offsync" || fc.Session != "account-42" || fc.Backend != "sqlite" {
		t.Errorf("unexpected file config: %+v", fc)
	}
	if fc.HTTPTimeout != "20s" || fc.RetryInitial != "3s" {
		t.Errorf("durations = %q/%q", fc.HTTPTimeout, fc.RetryInitial)
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFileConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("LoadFileConfig(missing) expected error")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("session = [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(bad); err == nil {
		t.Error("LoadFileConfig(bad) expected error")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p == "" {
		t.Skip("no home directory")
	}
	if !strings.HasSuffix(p, filepath.Join(".offsync", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %v", p)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x")
	if FileExists(p) {
		t.Error("FileExists() = true for missing file")
	}
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(p) {
		t.Error("FileExists() = false for existing file")
	}
}

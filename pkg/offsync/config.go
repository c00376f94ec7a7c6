package offsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/offsync/internal/app"
	"github.com/bft-labs/offsync/internal/domain"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds the settings for one session.
type Config struct {
	// StateDir holds the persisted cache and queue. Required unless a
	// storage is supplied with WithStorage.
	StateDir string

	// SessionID namespaces persisted state so accounts never see each
	// other's queued writes. Required.
	SessionID string

	// Backend selects the storage: "file" (default) or "sqlite".
	Backend string

	// ServiceURL is the base URL of the backend API. Required unless a
	// submitter is supplied with WithSubmitter.
	ServiceURL  string
	AuthKey     string
	HTTPTimeout time.Duration

	// RetryInitial enables re-draining after a network-class failure while
	// still online. Zero leaves the next online transition as the only trigger.
	RetryInitial time.Duration
	RetryMax     time.Duration

	ShutdownTimeout time.Duration
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.RetryInitial > 0 && c.RetryMax <= 0 {
		c.RetryMax = app.DefaultRetryMax
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = app.ShutdownTimeout
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
}

// Validate checks the fields that do not depend on options.
func (c *Config) Validate() error {
	if err := domain.ValidateSessionID(c.SessionID); err != nil {
		return err
	}
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.RetryInitial < 0 {
		return fmt.Errorf("%w: negative retry interval", ErrInvalidConfig)
	}
	return nil
}

package offsync

import (
	"time"
)

// Option configures optional behavior of a Session.
type Option func(*options)

type options struct {
	storage      Storage
	submitter    Submitter
	connectivity Connectivity
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	now          func() time.Time
	newID        func() string
}

// WithStorage replaces the backend selected by Config.Backend.
func WithStorage(s Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithSubmitter replaces the HTTP submitter built from Config.ServiceURL.
func WithSubmitter(s Submitter) Option {
	return func(o *options) {
		o.submitter = s
	}
}

// WithConnectivity sets the connectivity signal. Without it the session
// starts offline and the host drives it with SetOnline.
func WithConnectivity(c Connectivity) Option {
	return func(o *options) {
		o.connectivity = c
	}
}

// WithHTTPClient sets a custom HTTP client for the default submitter.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for session events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithClock overrides the time source used to stamp operations.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator overrides operation id generation (UUIDv4 by default).
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

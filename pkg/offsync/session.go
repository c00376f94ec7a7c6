package offsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	connAdapter "github.com/bft-labs/offsync/internal/adapters/connectivity"
	"github.com/bft-labs/offsync/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/offsync/internal/adapters/http"
	"github.com/bft-labs/offsync/internal/adapters/sqlite"
	"github.com/bft-labs/offsync/internal/app"
	"github.com/bft-labs/offsync/internal/ports"
	"github.com/bft-labs/offsync/pkg/log"
)

// sqliteFile is the database name under StateDir for the sqlite backend.
const sqliteFile = "offsync.db"

// Session is the offline layer for one signed-in account: a cache of
// last-known-good records and a durable queue of mutations replayed when
// connectivity returns. Create one per active session with New.
type Session struct {
	config Config
	logger ports.Logger

	storage Storage
	closer  io.Closer
	conn    Connectivity
	manual  *connAdapter.Manual

	cache  *app.Cache
	queue  *app.Queue
	syncer *app.Synchronizer

	mu     sync.Mutex
	closed bool
}

// New opens the persisted cache and queue for cfg.SessionID and wires the
// synchronizer. The session is created in StateStopped; call Start to
// drain on connectivity changes.
func New(cfg Config, opts ...Option) (*Session, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var logger ports.Logger = log.NewNoopLogger()
	if o.logger != nil {
		logger = o.logger
	}
	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	s := &Session{config: cfg, logger: logger}

	if err := s.openStorage(o.storage); err != nil {
		return nil, err
	}

	submitter := o.submitter
	if submitter == nil {
		if cfg.ServiceURL == "" {
			s.closeStorage()
			return nil, fmt.Errorf("%w: service URL is required", ErrInvalidConfig)
		}
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		submitter = httpAdapter.NewSubmitter(client, httpAdapter.Config{
			ServiceURL: cfg.ServiceURL,
			AuthKey:    cfg.AuthKey,
			SessionID:  cfg.SessionID,
		}, logger)
	}

	if o.connectivity != nil {
		s.conn = o.connectivity
	} else {
		s.manual = connAdapter.NewManual(false)
		s.conn = s.manual
	}

	ctx := context.Background()
	cache, err := app.OpenCache(ctx, cfg.SessionID, s.storage, logger)
	if err != nil {
		s.closeStorage()
		return nil, err
	}

	queueOpts := []app.QueueOption{app.WithQueueEvents(emitter)}
	if o.now != nil {
		queueOpts = append(queueOpts, app.WithClock(o.now))
	}
	if o.newID != nil {
		queueOpts = append(queueOpts, app.WithIDGenerator(o.newID))
	}
	queue, err := app.OpenQueue(ctx, cfg.SessionID, s.storage, submitter, logger, queueOpts...)
	if err != nil {
		s.closeStorage()
		return nil, err
	}

	s.cache = cache
	s.queue = queue
	s.syncer = app.NewSynchronizer(queue, s.conn, app.SynchronizerConfig{
		RetryInitial:    cfg.RetryInitial,
		RetryMax:        cfg.RetryMax,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger, emitter)
	s.syncer.OnDrain(emitter.onDrain)

	logger.Info("session opened",
		ports.String("session", cfg.SessionID),
		ports.String("backend", cfg.Backend),
		ports.Int("queued", queue.Len()),
		ports.Int("cached", len(cache.Keys())),
	)
	return s, nil
}

func (s *Session) openStorage(custom Storage) error {
	if custom != nil {
		s.storage = custom
		return nil
	}
	if s.config.StateDir == "" {
		return fmt.Errorf("%w: state dir is required", ErrInvalidConfig)
	}

	switch s.config.Backend {
	case BackendSQLite:
		if err := os.MkdirAll(s.config.StateDir, 0o755); err != nil {
			return fmt.Errorf("%w: create state dir: %v", ErrStorage, err)
		}
		db, err := sqlite.Open(filepath.Join(s.config.StateDir, sqliteFile))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		s.storage = db
		s.closer = db
	default:
		s.storage = fs.NewStore(s.config.StateDir)
	}
	return nil
}

func (s *Session) closeStorage() {
	if s.closer == nil {
		return
	}
	if err := s.closer.Close(); err != nil {
		s.logger.Warn("failed to close storage", ports.Err(err))
	}
	s.closer = nil
}

// Start subscribes to connectivity and drains whenever the host comes
// online, including once now if it already is.
func (s *Session) Start(ctx context.Context) error {
	return s.syncer.Start(ctx)
}

// Stop unsubscribes and waits for a running drain to settle.
func (s *Session) Stop() error {
	return s.syncer.Stop()
}

// Close stops the synchronizer if running and releases storage.
// The session must not be used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if st := s.syncer.State(); st == app.StateRunning || st == app.StateStarting {
		err = s.syncer.Stop()
	}
	s.closeStorage()
	return err
}

// Status returns the synchronizer lifecycle state.
func (s *Session) Status() State {
	return State(s.syncer.State())
}

// SessionID returns the namespace this session persists under.
func (s *Session) SessionID() string {
	return s.config.SessionID
}

// Cache returns the session cache.
func (s *Session) Cache() *Cache {
	return s.cache
}

// Online reports the current connectivity state.
func (s *Session) Online() bool {
	return s.conn.Online()
}

// SetOnline drives the built-in connectivity signal. It returns false when
// a custom Connectivity was supplied with WithConnectivity.
func (s *Session) SetOnline(online bool) bool {
	if s.manual == nil {
		return false
	}
	s.manual.SetOnline(online)
	return true
}

// Enqueue records a mutation intent for later replay. payload is encoded
// to JSON once; json.RawMessage and []byte are taken as already encoded.
func (s *Session) Enqueue(ctx context.Context, entityType string, kind OperationKind, payload any) (string, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return "", err
	}
	return s.queue.Enqueue(ctx, entityType, kind, raw)
}

// Mutate submits directly when online with nothing older queued, and
// queues otherwise. Rejections are returned; network failures are queued.
func (s *Session) Mutate(ctx context.Context, entityType string, kind OperationKind, payload any) (MutationResult, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return MutationResult{}, err
	}
	return s.queue.Mutate(ctx, s.conn.Online(), entityType, kind, raw)
}

// Drain replays pending operations now, regardless of connectivity.
func (s *Session) Drain(ctx context.Context) DrainResult {
	return s.queue.Drain(ctx)
}

// Sync asks a running synchronizer to drain in the background.
func (s *Session) Sync() {
	s.syncer.Trigger()
}

// ListFailed returns operations the backend rejected.
func (s *Session) ListFailed() []Operation {
	return s.queue.ListFailed()
}

// Operations returns every queued operation in replay order.
func (s *Session) Operations() []Operation {
	return s.queue.Snapshot()
}

// Operation returns one queued operation.
func (s *Session) Operation(id string) (Operation, bool) {
	return s.queue.Get(id)
}

// Discard drops a pending or failed operation without replaying it.
func (s *Session) Discard(ctx context.Context, id string) error {
	return s.queue.Discard(ctx, id)
}

// Retry returns a failed operation to pending and, when online, schedules
// a drain.
func (s *Session) Retry(ctx context.Context, id string) error {
	if err := s.queue.Retry(ctx, id); err != nil {
		return err
	}
	if s.syncer.State() == app.StateRunning && s.conn.Online() {
		s.syncer.Trigger()
	}
	return nil
}

// Pending returns the number of operations waiting for replay.
func (s *Session) Pending() int {
	return s.queue.Pending()
}

// SignOut clears the cache. Queued operations stay in the session
// namespace and replay on the account's next session.
func (s *Session) SignOut(ctx context.Context) error {
	if st := s.syncer.State(); st == app.StateRunning || st == app.StateStarting {
		if err := s.syncer.Stop(); err != nil {
			s.logger.Warn("synchronizer did not stop cleanly", ports.Err(err))
		}
	}
	s.logger.Info("signing out", ports.String("session", s.config.SessionID))
	return s.cache.Clear(ctx)
}

func encodePayload(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return t, nil
	case []byte:
		return json.RawMessage(t), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: encode payload: %v", ErrInvalidOperation, err)
		}
		return raw, nil
	}
}

package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/offsync/internal/ports"
)

// SynchronizerConfig tunes the synchronizer.
type SynchronizerConfig struct {
	// RetryInitial enables re-draining after a network-class failure while
	// the host still reports online (e.g. the backend returned 503). Zero
	// disables it, leaving the next online transition as the only trigger.
	RetryInitial time.Duration
	RetryMax     time.Duration

	ShutdownTimeout time.Duration
}

// Synchronizer drains the queue whenever connectivity comes back.
type Synchronizer struct {
	queue     *Queue
	conn      ports.Connectivity
	logger    ports.Logger
	lifecycle *Lifecycle
	cfg       SynchronizerConfig

	mu          sync.Mutex
	unsubscribe func()
	kick        chan struct{}
	drained     func(DrainResult)
}

// NewSynchronizer wires queue to conn.
func NewSynchronizer(queue *Queue, conn ports.Connectivity, cfg SynchronizerConfig, logger ports.Logger, emitter EventEmitter) *Synchronizer {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = ShutdownTimeout
	}
	return &Synchronizer{
		queue:     queue,
		conn:      conn,
		logger:    logger,
		lifecycle: NewLifecycle(logger, emitter),
		cfg:       cfg,
		kick:      make(chan struct{}, 1),
	}
}

// OnDrain registers fn to observe every drain result. Call before Start.
func (s *Synchronizer) OnDrain(fn func(DrainResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drained = fn
}

// State returns the lifecycle state.
func (s *Synchronizer) State() State {
	return s.lifecycle.State()
}

// Start subscribes to connectivity transitions and, if already online,
// drains once to flush work left by a previous session.
func (s *Synchronizer) Start(ctx context.Context) error {
	runCtx, err := s.lifecycle.Begin(ctx, "start requested")
	if err != nil {
		return err
	}

	unsubscribe := s.conn.Subscribe(func(online bool) {
		if online {
			s.logger.Info("connectivity restored, draining queue")
			s.Trigger()
		}
	})
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.lifecycle.Go(func() { s.run(runCtx) })

	if err := s.lifecycle.Ready("subscribed to connectivity"); err != nil {
		return err
	}

	if s.conn.Online() {
		s.Trigger()
	}
	return nil
}

// Trigger requests a drain. Requests made while one is queued coalesce.
func (s *Synchronizer) Trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Stop unsubscribes, cancels a running drain and waits for it to settle.
func (s *Synchronizer) Stop() error {
	if err := s.lifecycle.Halt("stop requested"); err != nil {
		return err
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	return s.lifecycle.Await(s.cfg.ShutdownTimeout)
}

func (s *Synchronizer) run(ctx context.Context) {
	var (
		retry  *time.Timer
		retryC <-chan time.Time
		back   *backoff
	)
	if s.cfg.RetryInitial > 0 {
		back = newBackoff(s.cfg.RetryInitial, s.cfg.RetryMax)
	}
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		case <-retryC:
		}
		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}

		res := s.queue.Drain(ctx)

		s.mu.Lock()
		fn := s.drained
		s.mu.Unlock()
		if fn != nil {
			fn(res)
		}

		if back == nil {
			continue
		}
		if res.Deferred && ctx.Err() == nil && s.conn.Online() {
			d := back.Next()
			s.logger.Info("scheduling drain retry", ports.Duration("in", d))
			retry = time.NewTimer(d)
			retryC = retry.C
		} else if !res.Skipped {
			back.Reset()
		}
	}
}

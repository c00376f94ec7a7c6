package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/offsync/internal/domain"
	"github.com/bft-labs/offsync/internal/ports"
)

// ShutdownTimeout bounds how long Stop waits for a running drain.
const ShutdownTimeout = 30 * time.Second

// State is the run state of the synchronizer.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// idle reports whether a new run may begin from s.
func (s State) idle() bool {
	return s == StateStopped || s == StateCrashed
}

// EventEmitter is called when the run state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle is the synchronizer's run state together with the context and
// goroutines of the current run. A run goes
// Begin → Ready → Halt → Await, ending Stopped, or Crashed when a worker
// outlives the shutdown timeout. Crashed runs may Begin again.
type Lifecycle struct {
	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	workers sync.WaitGroup

	logger  ports.Logger
	emitter EventEmitter
}

// NewLifecycle returns a stopped lifecycle.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{logger: logger, emitter: emitter}
}

// State returns the current run state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Begin starts a run and returns the context its workers use. The context
// is canceled by Halt or when parent is done.
func (l *Lifecycle) Begin(parent context.Context, reason string) (context.Context, error) {
	l.mu.Lock()
	prev := l.state
	if !prev.idle() {
		l.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.state = StateStarting
	l.mu.Unlock()

	l.announce(prev, StateStarting, reason)
	return ctx, nil
}

// Ready marks a starting run as running.
func (l *Lifecycle) Ready(reason string) error {
	return l.move(StateStarting, StateRunning, reason)
}

// Go runs fn as a worker of the current run.
func (l *Lifecycle) Go(fn func()) {
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		fn()
	}()
}

// Halt moves a starting or running run to Stopping and cancels its context.
func (l *Lifecycle) Halt(reason string) error {
	l.mu.Lock()
	prev := l.state
	if prev != StateStarting && prev != StateRunning {
		l.mu.Unlock()
		return domain.ErrNotRunning
	}
	l.state = StateStopping
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	l.announce(prev, StateStopping, reason)
	if cancel != nil {
		cancel()
	}
	return nil
}

// Await waits for the workers of a halted run. It settles in Stopped, or
// in Crashed with ErrShutdownTimeout if a worker is still busy after timeout.
func (l *Lifecycle) Await(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.workers.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return l.move(StateStopping, StateStopped, "workers finished")
	case <-timer.C:
		l.logger.Warn("shutdown timeout, abandoning drain", ports.Duration("timeout", timeout))
		_ = l.move(StateStopping, StateCrashed, "shutdown timeout")
		return domain.ErrShutdownTimeout
	}
}

func (l *Lifecycle) move(from, to State, reason string) error {
	l.mu.Lock()
	cur := l.state
	if cur != from {
		l.mu.Unlock()
		if cur.idle() {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = to
	l.mu.Unlock()

	l.announce(from, to, reason)
	return nil
}

func (l *Lifecycle) announce(from, to State, reason string) {
	if l.emitter != nil {
		l.emitter.OnStateChange(from, to, reason)
	}
	l.logger.Info("synchronizer state",
		ports.String("from", from.String()),
		ports.String("to", to.String()),
		ports.String("reason", reason),
	)
}

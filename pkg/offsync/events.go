package offsync

import (
	"time"

	"github.com/bft-labs/offsync/internal/app"
	"github.com/bft-labs/offsync/internal/domain"
)

// State is the lifecycle state of the synchronizer.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// OperationEvent is emitted as a drain settles an operation.
type OperationEvent struct {
	Operation Operation
	// Err is nil for applied operations.
	Err error
}

// DrainEvent is emitted after every synchronizer-triggered drain.
type DrainEvent struct {
	Applied   int
	Rejected  int
	Deferred  bool
	Remaining int
	Duration  time.Duration
}

// EventHandler receives session events. Calls are synchronous from the
// drain goroutine and should return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnApplied(OperationEvent)
	OnRejected(OperationEvent)
	OnDeferred(OperationEvent)
	OnDrain(DrainEvent)
}

// BaseEventHandler implements EventHandler with no-ops; embed it to
// override only some methods.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnApplied(OperationEvent)       {}
func (BaseEventHandler) OnRejected(OperationEvent)      {}
func (BaseEventHandler) OnDeferred(OperationEvent)      {}
func (BaseEventHandler) OnDrain(DrainEvent)             {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: State(previous),
		Current:  State(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnApplied(op domain.Operation) {
	if e.handler == nil {
		return
	}
	e.handler.OnApplied(OperationEvent{Operation: op})
}

func (e *eventEmitterWrapper) OnRejected(op domain.Operation, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnRejected(OperationEvent{Operation: op, Err: err})
}

func (e *eventEmitterWrapper) OnDeferred(op domain.Operation, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnDeferred(OperationEvent{Operation: op, Err: err})
}

func (e *eventEmitterWrapper) onDrain(r app.DrainResult) {
	if e.handler == nil || r.Skipped {
		return
	}
	e.handler.OnDrain(DrainEvent{
		Applied:   r.Applied,
		Rejected:  r.Rejected,
		Deferred:  r.Deferred,
		Remaining: r.Remaining,
		Duration:  r.Duration,
	})
}

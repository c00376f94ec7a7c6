package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the offsync domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("offsync: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("offsync: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("offsync: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("offsync: invalid configuration")

	// ErrInvalidSession is returned for an empty or unsafe session id.
	ErrInvalidSession = errors.New("offsync: invalid session")

	// ErrInvalidOperation is returned when an operation cannot be enqueued.
	ErrInvalidOperation = errors.New("offsync: invalid operation")

	// ErrNotFound is returned for unknown operation ids and absent records.
	ErrNotFound = errors.New("offsync: not found")

	// ErrInFlight is returned when discarding the operation being replayed.
	ErrInFlight = errors.New("offsync: operation in flight")

	// ErrStorage wraps local persistence failures.
	ErrStorage = errors.New("offsync: storage failure")
)

// ErrorKind is the closed set of failure classes the drain loop branches on.
type ErrorKind int

const (
	// KindNone means no error.
	KindNone ErrorKind = iota
	// KindNetwork means the round trip could not be completed.
	KindNetwork
	// KindRejection means the backend declined the operation on its merits.
	KindRejection
	// KindStorage means local persistence failed.
	KindStorage
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindRejection:
		return "rejection"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// SubmitError is returned by submitters to classify a failed replay. Only
// KindRejection marks the operation failed; any other Kind is retried.
type SubmitError struct {
	Kind ErrorKind
	// Reason is machine readable, e.g. "http_422" or "validation".
	Reason string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failure (%s): %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failure (%s)", e.Kind, e.Reason)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// NetworkError builds a network-class SubmitError.
func NetworkError(reason string, err error) *SubmitError {
	return &SubmitError{Kind: KindNetwork, Reason: reason, Err: err}
}

// RejectionError builds a rejection-class SubmitError.
func RejectionError(reason string, err error) *SubmitError {
	return &SubmitError{Kind: KindRejection, Reason: reason, Err: err}
}

// KindOf classifies err. Errors that carry no classification are treated as
// network-class so the operation is retained and retried rather than lost.
// A SubmitError only counts as a rejection when its Kind says so; a zero or
// unknown Kind is network-class, never success.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var se *SubmitError
	if errors.As(err, &se) {
		if se.Kind == KindRejection {
			return KindRejection
		}
		return KindNetwork
	}
	if errors.Is(err, ErrStorage) {
		return KindStorage
	}
	// context cancellation, timeouts and transport errors land here
	return KindNetwork
}

// ReasonOf returns the machine-readable reason carried by err, if any.
func ReasonOf(err error) string {
	var se *SubmitError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

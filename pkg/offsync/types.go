package offsync

import (
	"github.com/bft-labs/offsync/internal/app"
	"github.com/bft-labs/offsync/internal/domain"
	"github.com/bft-labs/offsync/internal/ports"
	"github.com/bft-labs/offsync/pkg/log"
)

type (
	// Operation is a queued mutation intent.
	Operation = domain.Operation

	// OperationKind is create, update or delete.
	OperationKind = domain.OperationKind

	// Status is the replay state of an operation.
	Status = domain.Status

	// SubmitError classifies a failed submission.
	SubmitError = domain.SubmitError

	// ErrorKind is the failure class of a SubmitError.
	ErrorKind = domain.ErrorKind

	// Cache is the session's last-known-good record store.
	Cache = app.Cache

	// DrainResult summarizes one drain.
	DrainResult = app.DrainResult

	// MutationResult reports whether a mutation was applied or queued.
	MutationResult = app.MutationResult

	// Submitter replays one operation against the backend.
	Submitter = ports.Submitter

	// SubmitterFunc adapts a function to Submitter.
	SubmitterFunc = ports.SubmitterFunc

	// Storage persists namespaced records.
	Storage = ports.Storage

	// Connectivity reports online state and its transitions.
	Connectivity = ports.Connectivity

	// HTTPClient is satisfied by *http.Client.
	HTTPClient = ports.HTTPClient

	// Logger is the structured logger interface.
	Logger = log.Logger
)

const (
	KindCreate = domain.KindCreate
	KindUpdate = domain.KindUpdate
	KindDelete = domain.KindDelete

	StatusPending  = domain.StatusPending
	StatusInFlight = domain.StatusInFlight
	StatusFailed   = domain.StatusFailed

	ErrorNetwork   = domain.KindNetwork
	ErrorRejection = domain.KindRejection
	ErrorStorage   = domain.KindStorage

	// CacheKeyProfile holds the signed-in user's profile.
	CacheKeyProfile = domain.CacheKeyProfile
)

// Errors returned by the package. Check with errors.Is.
var (
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrInvalidSession   = domain.ErrInvalidSession
	ErrInvalidOperation = domain.ErrInvalidOperation
	ErrNotFound         = domain.ErrNotFound
	ErrInFlight         = domain.ErrInFlight
	ErrStorage          = domain.ErrStorage
)

// ParseOperationKind parses "create", "update" or "delete".
func ParseOperationKind(s string) (OperationKind, error) {
	return domain.ParseOperationKind(s)
}

// KindOf classifies err. Unclassified errors are network-class.
func KindOf(err error) ErrorKind {
	return domain.KindOf(err)
}

// NetworkError builds a network-class error for custom submitters.
func NetworkError(reason string, err error) error {
	return domain.NetworkError(reason, err)
}

// RejectionError builds a rejection-class error for custom submitters.
func RejectionError(reason string, err error) error {
	return domain.RejectionError(reason, err)
}

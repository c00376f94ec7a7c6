package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OperationKind is the type of mutation an operation performs.
type OperationKind string

const (
	KindCreate OperationKind = "create"
	KindUpdate OperationKind = "update"
	KindDelete OperationKind = "delete"
)

// ParseOperationKind parses a kind name case-insensitively.
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown operation kind %q", ErrInvalidOperation, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete:
		return true
	default:
		return false
	}
}

// Status is the replay state of a queued operation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in-flight"
	StatusFailed   Status = "failed"
)

// Operation is a mutation intent held in the queue until the backend
// acknowledges it. The ID doubles as the idempotency token on replay.
type Operation struct {
	// ID is generated locally at enqueue time
	ID string `json:"id"`

	// EntityType names the remote collection (student, attendance, ledger, ...)
	EntityType string `json:"entity_type"`

	// Kind is create, update or delete
	Kind OperationKind `json:"kind"`

	// Payload is serialized once at enqueue time and replayed byte for byte
	Payload json.RawMessage `json:"payload"`

	// EnqueuedAt orders the queue
	EnqueuedAt time.Time `json:"enqueued_at"`

	// AttemptCount is the number of replay attempts made so far
	AttemptCount int `json:"attempt_count"`

	Status Status `json:"status"`

	// LastError holds the rejection reason once failed, or the last
	// network error while still pending.
	LastError string `json:"last_error,omitempty"`
}

// Validate checks the fields a caller supplies at enqueue time.
func (o Operation) Validate() error {
	if strings.TrimSpace(o.EntityType) == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidOperation)
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown operation kind %q", ErrInvalidOperation, o.Kind)
	}
	if len(o.Payload) > 0 && !json.Valid(o.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidOperation)
	}
	return nil
}

// Age returns how long the operation has been queued.
func (o Operation) Age(now time.Time) time.Duration {
	return now.Sub(o.EnqueuedAt)
}

// Clone returns a deep copy so callers cannot mutate queue-owned state.
func (o Operation) Clone() Operation {
	c := o
	if o.Payload != nil {
		c.Payload = append(json.RawMessage(nil), o.Payload...)
	}
	return c
}

package ports

import "context"

// Record names persisted per session namespace.
const (
	RecordCache = "cache"
	RecordQueue = "queue"
)

// Storage persists opaque records grouped by namespace (one per session).
// Writes must be durable when Save returns.
type Storage interface {
	// Load returns the record, or an error wrapping domain.ErrNotFound if absent.
	Load(ctx context.Context, namespace, name string) ([]byte, error)

	// Save replaces the record atomically.
	Save(ctx context.Context, namespace, name string, data []byte) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, namespace, name string) error
}

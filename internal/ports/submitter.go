package ports

import (
	"context"

	"github.com/bft-labs/offsync/internal/domain"
)

// Submitter replays a single mutation against the remote backend.
type Submitter interface {
	// Submit sends op, using op.ID as the idempotency token.
	// Returns nil once the backend acknowledged the write, or a
	// *domain.SubmitError classifying the failure as network or rejection.
	// Unclassified errors are treated as network-class by the caller.
	Submit(ctx context.Context, op domain.Operation) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, op domain.Operation) error

// Submit calls f(ctx, op).
func (f SubmitterFunc) Submit(ctx context.Context, op domain.Operation) error {
	return f(ctx, op)
}

package app

import (
	"context"
	"encoding/json"

	"github.com/bft-labs/offsync/internal/domain"
	"github.com/bft-labs/offsync/internal/ports"
)

// MutationResult reports how a mutation was handled.
type MutationResult struct {
	// ID is the operation id, sent to the backend as the idempotency token.
	ID string

	// Applied is true when the backend acknowledged the write directly.
	// Otherwise the operation was queued for the next drain.
	Applied bool
}

// Mutate tries the operation directly against the backend and falls back to
// the queue. The direct path is only taken while online and when nothing
// older is still waiting, so queued work is never overtaken. A rejection on
// the direct path is returned to the caller and nothing is queued.
func (q *Queue) Mutate(ctx context.Context, online bool, entityType string, kind domain.OperationKind, payload json.RawMessage) (MutationResult, error) {
	id := q.newID()
	op := domain.Operation{
		ID:         id,
		EntityType: entityType,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: q.now().UTC(),
		Status:     domain.StatusInFlight,
	}
	if err := op.Validate(); err != nil {
		return MutationResult{}, err
	}

	if online && !q.HasUnsent() {
		op.AttemptCount = 1
		err := q.submitter.Submit(ctx, op)
		switch domain.KindOf(err) {
		case domain.KindNone:
			return MutationResult{ID: id, Applied: true}, nil
		case domain.KindRejection:
			return MutationResult{ID: id}, err
		default:
			op.LastError = err.Error()
			q.logger.Info("direct submit failed, queueing",
				append(ports.Op(id, entityType, string(kind)), ports.Err(err))...)
		}
	}

	if _, err := q.add(ctx, op); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{ID: id}, nil
}

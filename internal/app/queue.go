package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/offsync/internal/domain"
	"github.com/bft-labs/offsync/internal/ports"
)

// QueueEventEmitter is called as the drain settles each operation.
type QueueEventEmitter interface {
	OnApplied(op domain.Operation)
	OnRejected(op domain.Operation, err error)
	OnDeferred(op domain.Operation, err error)
}

// DrainResult summarizes one call to Drain.
type DrainResult struct {
	// Skipped is true when another drain was already running.
	Skipped bool

	Applied  int
	Rejected int

	// Deferred is true when the drain stopped on a network-class failure.
	Deferred bool

	// Remaining is the number of pending operations left afterwards.
	Remaining int

	Duration time.Duration
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithClock overrides the time source used for EnqueuedAt.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator overrides operation id generation.
func WithIDGenerator(newID func() string) QueueOption {
	return func(q *Queue) { q.newID = newID }
}

// WithQueueEvents registers an emitter for drain outcomes.
func WithQueueEvents(e QueueEventEmitter) QueueOption {
	return func(q *Queue) { q.emitter = e }
}

// Queue is the persisted FIFO of mutation intents and its drain engine.
// It is the only owner of Operation records.
type Queue struct {
	mu        sync.Mutex
	ns        string
	storage   ports.Storage
	submitter ports.Submitter
	logger    ports.Logger
	emitter   QueueEventEmitter
	now       func() time.Time
	newID     func() string

	ops      []domain.Operation
	draining bool
}

// OpenQueue loads the persisted queue for session ns. Operations left
// in-flight by a previous process are returned to pending.
func OpenQueue(ctx context.Context, ns string, storage ports.Storage, submitter ports.Submitter, logger ports.Logger, opts ...QueueOption) (*Queue, error) {
	if err := domain.ValidateSessionID(ns); err != nil {
		return nil, err
	}
	q := &Queue{
		ns:        ns,
		storage:   storage,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(q)
	}

	ops, err := loadRecord[[]domain.Operation](ctx, storage, ns, ports.RecordQueue, logger)
	if err != nil {
		return nil, err
	}
	q.ops = ops

	sort.SliceStable(q.ops, func(i, j int) bool {
		return q.ops[i].EnqueuedAt.Before(q.ops[j].EnqueuedAt)
	})

	recovered, corrupt := 0, 0
	seen := make(map[string]bool, len(q.ops))
	for i := range q.ops {
		op := &q.ops[i]
		if !replayable(*op) || seen[op.ID] {
			if op.Status != domain.StatusFailed || op.LastError != ReasonCorrupt {
				logger.Error("quarantined unreadable operation",
					append(ports.Op(op.ID, op.EntityType, string(op.Kind)), ports.String("status", string(op.Status)))...)
				op.Status = domain.StatusFailed
				op.LastError = ReasonCorrupt
				corrupt++
			}
			continue
		}
		seen[op.ID] = true
		if op.Status == domain.StatusInFlight {
			op.Status = domain.StatusPending
			recovered++
		}
	}
	if recovered > 0 {
		logger.Warn("recovered interrupted operations",
			ports.String("session", ns),
			ports.Int("count", recovered),
		)
	}
	if recovered > 0 || corrupt > 0 {
		if err := q.persistLocked(ctx); err != nil {
			logger.Error("failed to persist recovered queue", ports.Err(err))
		}
	}

	return q, nil
}

// ReasonCorrupt is the LastError of a loaded operation that cannot be
// replayed. Such operations are kept as failed so ListFailed shows them.
const ReasonCorrupt = "corrupt"

// replayable reports whether a loaded operation is well formed.
func replayable(op domain.Operation) bool {
	if op.ID == "" || op.Validate() != nil {
		return false
	}
	switch op.Status {
	case domain.StatusPending, domain.StatusInFlight, domain.StatusFailed:
		return true
	default:
		return false
	}
}

// Enqueue appends a pending operation and persists the queue before
// returning its id. If the queue cannot be persisted the operation is not
// created and the error wraps domain.ErrStorage.
func (q *Queue) Enqueue(ctx context.Context, entityType string, kind domain.OperationKind, payload json.RawMessage) (string, error) {
	return q.EnqueueWithID(ctx, q.newID(), entityType, kind, payload)
}

// EnqueueWithID is Enqueue with a caller-chosen id, used when a direct
// submission already sent that id as its idempotency token.
func (q *Queue) EnqueueWithID(ctx context.Context, id, entityType string, kind domain.OperationKind, payload json.RawMessage) (string, error) {
	return q.add(ctx, domain.Operation{
		ID:         id,
		EntityType: entityType,
		Kind:       kind,
		Payload:    payload,
	})
}

// add appends op as pending at the tail. AttemptCount and LastError are
// kept so a direct attempt made before queueing stays visible.
func (q *Queue) add(ctx context.Context, op domain.Operation) (string, error) {
	op.Payload = append(json.RawMessage(nil), op.Payload...)
	op.Status = domain.StatusPending
	if op.ID == "" {
		return "", fmt.Errorf("%w: id is required", domain.ErrInvalidOperation)
	}
	if err := op.Validate(); err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexLocked(op.ID) >= 0 {
		return "", fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidOperation, op.ID)
	}

	// keep EnqueuedAt strictly increasing so reload order matches append order
	op.EnqueuedAt = q.now().UTC()
	if n := len(q.ops); n > 0 && !op.EnqueuedAt.After(q.ops[n-1].EnqueuedAt) {
		op.EnqueuedAt = q.ops[n-1].EnqueuedAt.Add(time.Nanosecond)
	}

	q.ops = append(q.ops, op)
	if err := q.persistLocked(ctx); err != nil {
		q.ops = q.ops[:len(q.ops)-1]
		q.logger.Error("operation not queued", append(ports.Op(op.ID, op.EntityType, string(op.Kind)), ports.Err(err))...)
		return "", err
	}

	q.logger.Debug("operation queued", append(ports.Op(op.ID, op.EntityType, string(op.Kind)), ports.Int("queued", len(q.ops)))...)
	return op.ID, nil
}

// Drain replays pending operations oldest first, one at a time. It returns
// immediately with Skipped set if a drain is already running. Drain never
// fails: every outcome is recorded in operation state.
func (q *Queue) Drain(ctx context.Context) DrainResult {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return DrainResult{Skipped: true}
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	start := time.Now()
	var res DrainResult

	for {
		if err := ctx.Err(); err != nil {
			res.Deferred = q.Pending() > 0
			break
		}

		op, ok := q.beginNext(ctx)
		if !ok {
			break
		}

		err := q.submitter.Submit(ctx, op)
		kind := q.settle(ctx, op, err)

		switch kind {
		case domain.KindNone:
			res.Applied++
		case domain.KindRejection:
			res.Rejected++
		default:
			res.Deferred = true
		}
		if res.Deferred {
			break
		}
	}

	res.Remaining = q.Pending()
	res.Duration = time.Since(start)

	if res.Applied > 0 || res.Rejected > 0 || res.Deferred {
		q.logger.Info("drain finished",
			ports.String("session", q.ns),
			ports.Int("applied", res.Applied),
			ports.Int("rejected", res.Rejected),
			ports.Bool("deferred", res.Deferred),
			ports.Int("remaining", res.Remaining),
			ports.Duration("duration", res.Duration),
		)
	}
	return res
}

// beginNext marks the oldest pending operation in-flight and returns a copy.
func (q *Queue) beginNext(ctx context.Context) (domain.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	for i := range q.ops {
		if q.ops[i].Status == domain.StatusPending {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Operation{}, false
	}

	q.ops[idx].Status = domain.StatusInFlight
	q.ops[idx].AttemptCount++
	if err := q.persistLocked(ctx); err != nil {
		q.logger.Warn("in-flight marker not persisted", ports.Err(err))
	}
	return q.ops[idx].Clone(), true
}

// settle applies the submit outcome to the in-flight operation and returns
// the error kind it was classified as.
func (q *Queue) settle(ctx context.Context, op domain.Operation, err error) domain.ErrorKind {
	kind := domain.KindOf(err)
	fields := ports.Op(op.ID, op.EntityType, string(op.Kind))

	q.mu.Lock()
	idx := q.indexLocked(op.ID)
	if idx < 0 {
		// unreachable: Discard refuses the in-flight operation
		q.mu.Unlock()
		return kind
	}

	switch kind {
	case domain.KindNone:
		q.ops = append(q.ops[:idx], q.ops[idx+1:]...)
	case domain.KindRejection:
		q.ops[idx].Status = domain.StatusFailed
		q.ops[idx].LastError = domain.ReasonOf(err)
	default:
		q.ops[idx].Status = domain.StatusPending
		q.ops[idx].LastError = err.Error()
	}
	var settled domain.Operation
	if kind != domain.KindNone {
		settled = q.ops[idx].Clone()
	} else {
		settled = op
	}
	if perr := q.persistLocked(ctx); perr != nil {
		q.logger.Error("queue state not persisted", append(fields, ports.Err(perr))...)
	}
	q.mu.Unlock()

	switch kind {
	case domain.KindNone:
		q.logger.Debug("operation applied", append(fields, ports.Int("attempt", op.AttemptCount))...)
		if q.emitter != nil {
			q.emitter.OnApplied(settled)
		}
	case domain.KindRejection:
		q.logger.Warn("operation rejected", append(fields, ports.String("reason", settled.LastError), ports.Err(err))...)
		if q.emitter != nil {
			q.emitter.OnRejected(settled, err)
		}
	default:
		q.logger.Info("drain paused on network failure", append(fields, ports.Int("attempt", op.AttemptCount), ports.Err(err))...)
		if q.emitter != nil {
			q.emitter.OnDeferred(settled, err)
		}
	}
	return kind
}

// ListFailed returns copies of every failed operation in queue order.
func (q *Queue) ListFailed() []domain.Operation {
	return q.filter(func(op domain.Operation) bool { return op.Status == domain.StatusFailed })
}

// Snapshot returns copies of every queued operation in queue order.
func (q *Queue) Snapshot() []domain.Operation {
	return q.filter(func(domain.Operation) bool { return true })
}

// Get returns a copy of one operation.
func (q *Queue) Get(id string) (domain.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return domain.Operation{}, false
	}
	return q.ops[idx].Clone(), true
}

// Discard removes a pending or failed operation without replaying it.
// The in-flight operation cannot be discarded.
func (q *Queue) Discard(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	op := q.ops[idx]
	if op.Status == domain.StatusInFlight {
		return fmt.Errorf("operation %s: %w", id, domain.ErrInFlight)
	}

	q.ops = slices.Delete(q.ops, idx, idx+1)
	if err := q.persistLocked(ctx); err != nil {
		q.ops = slices.Insert(q.ops, idx, op)
		q.logger.Error("operation not discarded", append(ports.Op(op.ID, op.EntityType, string(op.Kind)), ports.Err(err))...)
		return err
	}
	q.logger.Info("operation discarded", append(ports.Op(op.ID, op.EntityType, string(op.Kind)), ports.String("status", string(op.Status)))...)
	return nil
}

// Retry returns a failed operation to pending so the next drain replays it
// with the same id.
func (q *Queue) Retry(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	op := q.ops[idx]
	if op.Status != domain.StatusFailed {
		return fmt.Errorf("%w: operation %s is %s, not failed", domain.ErrInvalidOperation, id, op.Status)
	}
	if op.LastError == ReasonCorrupt {
		return fmt.Errorf("%w: operation %s is corrupt, discard it", domain.ErrInvalidOperation, id)
	}
	q.ops[idx].Status = domain.StatusPending
	q.ops[idx].LastError = ""
	if err := q.persistLocked(ctx); err != nil {
		q.ops[idx] = op
		return err
	}
	return nil
}

// Pending returns the number of operations waiting to be replayed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, op := range q.ops {
		if op.Status == domain.StatusPending {
			n++
		}
	}
	return n
}

// HasUnsent reports whether any operation is pending or in flight.
func (q *Queue) HasUnsent() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.ops {
		if op.Status != domain.StatusFailed {
			return true
		}
	}
	return false
}

// Len returns the number of operations in any state.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Draining reports whether a drain is running.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// NewID returns a fresh operation id from the queue's generator.
func (q *Queue) NewID() string {
	return q.newID()
}

func (q *Queue) filter(keep func(domain.Operation) bool) []domain.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Operation, 0, len(q.ops))
	for _, op := range q.ops {
		if keep(op) {
			out = append(out, op.Clone())
		}
	}
	return out
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.ops {
		if q.ops[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) persistLocked(ctx context.Context) error {
	ops := q.ops
	if ops == nil {
		ops = []domain.Operation{}
	}
	return saveRecord(ctx, q.storage, q.ns, ports.RecordQueue, ops)
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bft-labs/offsync/internal/domain"
)

func TestQueue_Mutate_OnlineApplied(t *testing.T) {
	backend := newFakeBackend()
	q := openTestQueue(t, newMemStorage(), backend)

	res, err := q.Mutate(context.Background(), true, "attendance", domain.KindCreate, json.RawMessage(`{"present":true}`))
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if !res.Applied {
		t.Error("Applied = false, want true")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if backend.Applied(res.ID) != 1 {
		t.Errorf("backend applied %s %d times, want 1", res.ID, backend.Applied(res.ID))
	}
}

func TestQueue_Mutate_Offline(t *testing.T) {
	backend := newFakeBackend()
	q := openTestQueue(t, newMemStorage(), backend)

	res, err := q.Mutate(context.Background(), false, "attendance", domain.KindCreate, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if res.Applied {
		t.Error("Applied = true while offline")
	}
	if len(backend.Calls()) != 0 {
		t.Error("submitted while offline")
	}
	if _, ok := q.Get(res.ID); !ok {
		t.Errorf("operation %s not queued", res.ID)
	}
}

func TestQueue_Mutate_NetworkFailureQueuesSameID(t *testing.T) {
	backend := newFakeBackend()
	backend.answer = func(domain.Operation, int) error {
		return domain.NetworkError("timeout", context.DeadlineExceeded)
	}
	q := openTestQueue(t, newMemStorage(), backend)

	res, err := q.Mutate(context.Background(), true, "ledger", domain.KindCreate, json.RawMessage(`{"amount":3}`))
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if res.Applied {
		t.Error("Applied = true after network failure")
	}
	op, ok := q.Get(res.ID)
	if !ok {
		t.Fatal("operation not queued after network failure")
	}
	if op.ID != backend.Calls()[0].ID {
		t.Errorf("queued id %s differs from submitted id %s", op.ID, backend.Calls()[0].ID)
	}
	if op.Status != domain.StatusPending {
		t.Errorf("Status = %s, want pending", op.Status)
	}
	if op.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1 for the direct attempt", op.AttemptCount)
	}
	if op.LastError == "" {
		t.Error("LastError empty after a failed direct attempt")
	}

	backend.answer = nil
	q.Drain(context.Background())
	calls := backend.Calls()
	if last := calls[len(calls)-1]; last.ID != res.ID || last.AttemptCount != 2 {
		t.Errorf("replay = %s attempt %d, want %s attempt 2", last.ID, last.AttemptCount, res.ID)
	}
}

func TestQueue_Mutate_RejectionReturned(t *testing.T) {
	backend := newFakeBackend()
	backend.answer = func(domain.Operation, int) error {
		return domain.RejectionError("http_422", nil)
	}
	q := openTestQueue(t, newMemStorage(), backend)

	_, err := q.Mutate(context.Background(), true, "student", domain.KindUpdate, json.RawMessage(`{}`))
	if domain.KindOf(err) != domain.KindRejection {
		t.Errorf("Mutate() error = %v, want rejection", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueue_Mutate_DoesNotOvertakeQueue(t *testing.T) {
	backend := newFakeBackend()
	q := openTestQueue(t, newMemStorage(), backend)

	first := mustEnqueue(t, q, "student", domain.KindCreate, `{"id":"s1"}`)
	res, err := q.Mutate(context.Background(), true, "student", domain.KindUpdate, json.RawMessage(`{"id":"s1"}`))
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if res.Applied {
		t.Error("direct write overtook queued operation")
	}
	if len(backend.Calls()) != 0 {
		t.Error("submitted ahead of queued work")
	}

	q.Drain(context.Background())
	calls := backend.Calls()
	if len(calls) != 2 || calls[0].ID != first || calls[1].ID != res.ID {
		t.Errorf("replay order = %v, want [%s %s]", calls, first, res.ID)
	}
}

func TestQueue_Mutate_Invalid(t *testing.T) {
	q := openTestQueue(t, newMemStorage(), newFakeBackend())
	_, err := q.Mutate(context.Background(), true, "", domain.KindCreate, nil)
	if !errors.Is(err, domain.ErrInvalidOperation) {
		t.Errorf("Mutate() error = %v, want ErrInvalidOperation", err)
	}
}

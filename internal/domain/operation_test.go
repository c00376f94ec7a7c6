package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseOperationKind(t *testing.T) {
	for in, want := range map[string]OperationKind{
		"create":   KindCreate,
		"UPDATE":   KindUpdate,
		" delete ": KindDelete,
	} {
		got, err := ParseOperationKind(in)
		if err != nil || got != want {
			t.Errorf("ParseOperationKind(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseOperationKind("upsert"); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("ParseOperationKind(upsert) error = %v", err)
	}
}

func TestOperation_Clone(t *testing.T) {
	op := Operation{ID: "op-1", Payload: json.RawMessage(`{"a":1}`)}
	c := op.Clone()
	c.Payload[2] = 'b'
	if string(op.Payload) != `{"a":1}` {
		t.Errorf("Clone shares payload: original now %s", op.Payload)
	}
}

func TestOperation_Age(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	op := Operation{EnqueuedAt: at}
	if got := op.Age(at.Add(time.Minute)); got != time.Minute {
		t.Errorf("Age() = %v, want 1m", got)
	}
}

func TestOperation_JSONFieldNames(t *testing.T) {
	op := Operation{
		ID:           "op-1",
		EntityType:   "student",
		Kind:         KindCreate,
		Payload:      json.RawMessage(`{}`),
		AttemptCount: 1,
		Status:       StatusFailed,
		LastError:    "http_422",
	}
	data, err := json.Marshal(op)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	for _, k := range []string{"id", "entity_type", "kind", "payload", "enqueued_at", "attempt_count", "status", "last_error"} {
		if _, ok := m[k]; !ok {
			t.Errorf("encoded operation missing %q: %s", k, data)
		}
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/offsync/internal/domain"
)

// memStorage is an in-memory ports.Storage with switchable failures.
type memStorage struct {
	mu       sync.Mutex
	records  map[string][]byte
	failSave bool
	saves    int
}

func newMemStorage() *memStorage {
	return &memStorage{records: make(map[string][]byte)}
}

func (m *memStorage) Load(ctx context.Context, ns, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[ns+"/"+name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", ns, name, domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *memStorage) Save(ctx context.Context, ns, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.saves++
	m.records[ns+"/"+name] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Delete(ctx context.Context, ns, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	delete(m.records, ns+"/"+name)
	return nil
}

func (m *memStorage) setFailSave(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = fail
}

func (m *memStorage) has(ns, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[ns+"/"+name]
	return ok
}

// fakeBackend records submissions and answers from a per-call script.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []domain.Operation
	seen   map[string]int
	answer func(op domain.Operation, call int) error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{seen: make(map[string]int)}
}

func (b *fakeBackend) Submit(ctx context.Context, op domain.Operation) error {
	b.mu.Lock()
	b.calls = append(b.calls, op)
	call := len(b.calls)
	answer := b.answer
	b.mu.Unlock()

	var err error
	if answer != nil {
		err = answer(op, call)
	}
	if err == nil {
		b.mu.Lock()
		b.seen[op.ID]++
		b.mu.Unlock()
	}
	return err
}

func (b *fakeBackend) Calls() []domain.Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Operation(nil), b.calls...)
}

// Applied returns how many times the backend applied id.
func (b *fakeBackend) Applied(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seen[id]
}

// fakeConn is a ports.Connectivity driven by the test.
type fakeConn struct {
	mu     sync.Mutex
	online bool
	subs   []func(bool)
}

func (c *fakeConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConn) Subscribe(fn func(bool)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.subs)
	c.subs = append(c.subs, fn)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subs[idx] = nil
	}
}

func (c *fakeConn) set(online bool) {
	c.mu.Lock()
	c.online = online
	subs := append([]func(bool){}, c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(online)
		}
	}
}

func (c *fakeConn) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, fn := range c.subs {
		if fn != nil {
			n++
		}
	}
	return n
}

// sequentialIDs returns op-1, op-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("op-%d", n)
	}
}

// fixedClock returns the same instant on every call.
func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// recordingEvents implements QueueEventEmitter.
type recordingEvents struct {
	mu       sync.Mutex
	applied  []string
	rejected []string
	deferred []string
}

func (r *recordingEvents) OnApplied(op domain.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, op.ID)
}

func (r *recordingEvents) OnRejected(op domain.Operation, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, op.ID)
}

func (r *recordingEvents) OnDeferred(op domain.Operation, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred = append(r.deferred, op.ID)
}

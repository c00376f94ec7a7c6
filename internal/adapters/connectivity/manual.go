// Package connectivity provides ports.Connectivity implementations: a
// host-driven switch and an fsnotify watcher over a status file.
package connectivity

import "sync"

// broadcaster fans a state transition out to subscribers.
type broadcaster struct {
	mu     sync.Mutex
	online bool
	next   int
	subs   map[int]func(bool)
}

func newBroadcaster(online bool) *broadcaster {
	return &broadcaster{online: online, subs: make(map[int]func(bool))}
}

func (b *broadcaster) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

func (b *broadcaster) Subscribe(fn func(online bool)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// set records the new state and notifies subscribers outside the lock.
// Repeated values are not transitions and are dropped.
func (b *broadcaster) set(online bool) bool {
	b.mu.Lock()
	if b.online == online {
		b.mu.Unlock()
		return false
	}
	b.online = online
	fns := make([]func(bool), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
	return true
}

// Manual is a Connectivity driven by the host calling SetOnline, e.g. from
// a platform network callback.
type Manual struct {
	*broadcaster
}

// NewManual creates a Manual signal with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{broadcaster: newBroadcaster(online)}
}

// SetOnline records a state change and notifies subscribers on transitions.
func (m *Manual) SetOnline(online bool) {
	m.set(online)
}

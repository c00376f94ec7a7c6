package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/offsync/internal/domain"
	"github.com/bft-labs/offsync/internal/ports"
)

// Cache is the session's read-through store of last-known-good records.
// Reads are served from memory; every mutation is written through.
type Cache struct {
	mu      sync.RWMutex
	ns      string
	storage ports.Storage
	logger  ports.Logger
	now     func() time.Time
	entries map[string]domain.CacheEntry
}

// OpenCache loads the persisted cache for session ns.
func OpenCache(ctx context.Context, ns string, storage ports.Storage, logger ports.Logger) (*Cache, error) {
	if err := domain.ValidateSessionID(ns); err != nil {
		return nil, err
	}
	c := &Cache{
		ns:      ns,
		storage: storage,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]domain.CacheEntry),
	}
	entries, err := loadRecord[map[string]domain.CacheEntry](ctx, storage, ns, ports.RecordCache, logger)
	if err != nil {
		return nil, err
	}
	if entries != nil {
		c.entries = entries
	}
	return c, nil
}

// Set stores value under key, replacing any prior value. If persistence
// fails the value is still served from memory for this session and the
// returned error wraps domain.ErrStorage.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := toRaw(value)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = domain.CacheEntry{Value: raw, UpdatedAt: c.now().UTC()}
	return c.persistLocked(ctx, "set", key)
}

// Get returns the last value stored under key. It never performs I/O.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), e.Value...), true
}

// Lookup decodes the value under key into dst.
func (c *Cache) Lookup(key string, dst interface{}) (bool, error) {
	raw, ok := c.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode cache value %q: %w", key, err)
	}
	return true, nil
}

// UpdatedAt returns when key was last set.
func (c *Cache) UpdatedAt(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.UpdatedAt, ok
}

// Remove deletes key. Removing an absent key is not an error.
func (c *Cache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return nil
	}
	delete(c.entries, key)
	return c.persistLocked(ctx, "remove", key)
}

// Clear drops every entry, e.g. on sign-out.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]domain.CacheEntry)
	if err := c.storage.Delete(context.WithoutCancel(ctx), c.ns, ports.RecordCache); err != nil {
		c.logger.Error("failed to clear cache", ports.String("session", c.ns), ports.Err(err))
		return fmt.Errorf("%w: clear cache: %v", domain.ErrStorage, err)
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cache) persistLocked(ctx context.Context, action, key string) error {
	if err := saveRecord(ctx, c.storage, c.ns, ports.RecordCache, c.entries); err != nil {
		c.logger.Error("cache write not persisted",
			ports.String("session", c.ns),
			ports.String("action", action),
			ports.String("key", key),
			ports.Err(err),
		)
		return err
	}
	return nil
}

// toRaw returns the JSON form of v, passing pre-encoded values through.
func toRaw(v interface{}) (json.RawMessage, error) {
	switch t := v.(type) {
	case json.RawMessage:
		if !json.Valid(t) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return append(json.RawMessage(nil), t...), nil
	case []byte:
		if !json.Valid(t) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return append(json.RawMessage(nil), t...), nil
	default:
		return json.Marshal(v)
	}
}

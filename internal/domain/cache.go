package domain

import (
	"encoding/json"
	"time"
)

// CacheEntry is a last-known-good copy of a remote record.
// It has no TTL: it stays valid until superseded or removed.
type CacheEntry struct {
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Well-known cache keys.
const (
	// CacheKeyProfile holds the active organization/profile record.
	CacheKeyProfile = "profile"
)

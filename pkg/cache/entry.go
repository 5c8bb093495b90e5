// Package cache provides an optional Redis-backed cache for registry
// detail responses. The registry API sends no cache headers, so entries
// carry a fixed TTL chosen by the operator.
package cache

import "time"

// DefaultTTL is used when the manager is created without an explicit TTL.
// Registry basic attributes change rarely; a day is conservative.
const DefaultTTL = 24 * time.Hour

// Entry represents one cached detail response.
type Entry struct {
	// Data is the raw response body.
	Data []byte `json:"data"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// NewEntry wraps a response body in an entry stamped with the current time.
// The expiry is filled in by the manager when the entry is stored.
func NewEntry(data []byte) *Entry {
	return &Entry{
		Data:     data,
		CachedAt: time.Now(),
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

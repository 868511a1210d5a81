// Package cache provides a TTL byte cache used by the gateway transport to
// short-circuit repeated GETs for slow-moving resources like the catalog.
package cache

import (
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// Cache stores response bodies keyed by request path and query.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, body []byte, ttl time.Duration)
	Delete(key string)
	Purge()
}

// entry pairs a body with its expiry. otter evicts on the default TTL;
// the explicit expiresAt supports shorter per-entry TTLs.
type entry struct {
	body      []byte
	expiresAt time.Time
}

// Memory is an in-memory W-TinyLFU cache backed by otter.
type Memory struct {
	c *otter.Cache[string, entry]
}

// NewMemory creates a Memory cache holding at most maxEntries bodies, each
// expiring after defaultTTL unless Set specifies a shorter one.
func NewMemory(maxEntries int, defaultTTL time.Duration) (*Memory, error) {
	c, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize:      maxEntries,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](defaultTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: create: %w", err)
	}
	return &Memory{c: c}, nil
}

// Get returns the cached body for key if present and unexpired.
func (m *Memory) Get(key string) ([]byte, bool) {
	e, ok := m.c.GetIfPresent(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.c.Invalidate(key)
		return nil, false
	}
	return e.body, true
}

// Set stores body under key with the given TTL.
func (m *Memory) Set(key string, body []byte, ttl time.Duration) {
	m.c.Set(key, entry{body: body, expiresAt: time.Now().Add(ttl)})
}

// Delete removes key from the cache.
func (m *Memory) Delete(key string) {
	m.c.Invalidate(key)
}

// Purge removes every entry.
func (m *Memory) Purge() {
	m.c.InvalidateAll()
}

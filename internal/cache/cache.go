// Package cache holds the small in-process caches: note-name
// resolution with TTL plus stat revalidation, and a generic TTL memo.
package cache

import (
	"os"
	"strings"
	"sync"
	"time"
)

// NameCache maps lowercased note stems to resolved absolute paths.
// Hits are revalidated with a stat so renames never serve stale paths.
type NameCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]nameEntry
	now     func() time.Time
}

type nameEntry struct {
	path    string
	expires time.Time
}

// NewNameCache creates a cache with the given TTL (default 5 minutes).
func NewNameCache(ttl time.Duration) *NameCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NameCache{ttl: ttl, entries: map[string]nameEntry{}, now: time.Now}
}

// Resolve returns the path for name, consulting lookup on a miss. A
// cached path that no longer exists on disk falls through to lookup.
func (c *NameCache) Resolve(name string, lookup func(string) (string, error)) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && c.now().Before(entry.expires) {
		if _, err := os.Stat(entry.path); err == nil {
			return entry.path, nil
		}
	}

	path, err := lookup(name)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.entries[key] = nameEntry{path: path, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return path, nil
}

// Invalidate drops one cached name.
func (c *NameCache) Invalidate(name string) {
	key := strings.ToLower(strings.TrimSpace(name))
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll empties the cache.
func (c *NameCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = map[string]nameEntry{}
	c.mu.Unlock()
}

// Memo caches one computed value with a TTL. The zero value is not
// usable; create with NewMemo.
type Memo[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	value   V
	expires time.Time
	now     func() time.Time
}

// NewMemo creates a memo with the given TTL (default 1 minute).
func NewMemo[V any](ttl time.Duration) *Memo[V] {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Memo[V]{ttl: ttl, now: time.Now}
}

// Get returns the cached value, computing it when absent or expired.
// Errors are not cached.
func (m *Memo[V]) Get(compute func() (V, error)) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Before(m.expires) {
		return m.value, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	m.value = v
	m.expires = m.now().Add(m.ttl)
	return v, nil
}

// Drop forgets the cached value.
func (m *Memo[V]) Drop() {
	m.mu.Lock()
	m.expires = time.Time{}
	m.mu.Unlock()
}

// Package cache stores successful routing results for a bounded time.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is used when Set is given a non-positive ttl.
const DefaultTTL = time.Hour

// Store is the response cache contract. Values are opaque bytes; stores copy
// them on the way in and out so no caller can alias a stored entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL cache. Expired entries are removed lazily on
// read. With MaxEntries set, inserting into a full cache evicts the entry
// closest to expiry.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	now        func() time.Time
	maxEntries int
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// WithMaxEntries bounds the number of live entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(m *Memory) {
		m.maxEntries = n
	}
}

// NewMemory creates an empty cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the stored value. An entry whose expiry has passed
// is deleted and reported absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, _, ok := m.lookup(key)
	return v, ok
}

func (m *Memory) lookup(key string) ([]byte, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, 0, false
	}
	now := m.now()
	if !now.Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, 0, false
	}
	return clone(e.value), e.expiresAt.Sub(now), true
}

// Set stores a copy of value for ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked(now)
	}
	m.entries[key] = entry{value: clone(value), expiresAt: now.Add(ttl)}
}

// evictLocked drops expired entries, then the one closest to expiry if the
// cache is still full.
func (m *Memory) evictLocked(now time.Time) {
	var (
		victim  string
		soonest time.Time
	)
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			continue
		}
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	if len(m.entries) >= m.maxEntries && victim != "" {
		delete(m.entries, victim)
	}
}

// Len reports the number of stored entries, including expired ones not yet
// read.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

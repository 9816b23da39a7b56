package cache

import (
	"context"
	"time"
)

// Tiered consults the in-process cache first and a shared Redis tier on a
// miss. Remote hits are copied into memory for their remaining TTL.
type Tiered struct {
	local  *Memory
	remote *Redis
}

// NewTiered combines a memory cache with an optional Redis tier.
func NewTiered(local *Memory, remote *Redis) *Tiered {
	return &Tiered{local: local, remote: remote}
}

// Get implements Store.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.local.Get(ctx, key); ok {
		return v, true
	}
	if t.remote == nil {
		return nil, false
	}
	v, ttl, ok := t.remote.lookup(ctx, key)
	if !ok {
		return nil, false
	}
	t.local.Set(ctx, key, v, ttl)
	return v, true
}

// Set implements Store.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	t.local.Set(ctx, key, value, ttl)
	if t.remote != nil {
		t.remote.Set(ctx, key, value, ttl)
	}
}

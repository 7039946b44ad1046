// Package cache stores serialized view payloads keyed by dataset fingerprint
// and filters. A miss is never an error: callers rebuild the payload.
package cache

import (
	"context"
)

// ViewCache is implemented by every cache tier.
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}

// Key builds the cache key of one filter selection over one dataset version.
func Key(fingerprint, filtersKey string) string {
	return fingerprint + ":" + filtersKey
}

// Tiered reads through its tiers in order and back-fills the faster tiers on
// a hit in a slower one. Writes go to every tier.
type Tiered struct {
	tiers []ViewCache
}

// NewTiered chains the given caches. Nil tiers are skipped.
func NewTiered(tiers ...ViewCache) *Tiered {
	t := &Tiered{}
	for _, c := range tiers {
		if c != nil {
			t.tiers = append(t.tiers, c)
		}
	}
	return t
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, c := range t.tiers {
		payload, ok := c.Get(ctx, key)
		if !ok {
			continue
		}
		for _, faster := range t.tiers[:i] {
			faster.Set(ctx, key, payload)
		}
		return payload, true
	}
	return nil, false
}

func (t *Tiered) Set(ctx context.Context, key string, payload []byte) {
	for _, c := range t.tiers {
		c.Set(ctx, key, payload)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) Set(context.Context, string, []byte)        {}

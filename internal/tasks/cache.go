package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/acctsync/internal/models"
	"golang.org/x/sync/singleflight"
)

// LocalLookup resolves the ledger records an identity is enriched from.
type LocalLookup interface {
	AccountByUID(ctx context.Context, uid string) models.Lookup[models.Record]
	RefundByUID(ctx context.Context, uid string) models.Lookup[models.Record]
	ProviderByUUID(ctx context.Context, uuid string) models.Lookup[models.Record]
}

// lookupCache memoizes a LocalLookup for a single run.
//
// Found and NotFound outcomes are kept; Failed is not, so a later identity may retry the key.
// Concurrent misses for the same key share one query.
type lookupCache struct {
	next    LocalLookup
	mu      sync.RWMutex
	entries map[string]models.Lookup[models.Record]
	group   singleflight.Group
}

func newLookupCache(next LocalLookup) *lookupCache {
	return &lookupCache{next: next, entries: make(map[string]models.Lookup[models.Record])}
}

func (c *lookupCache) AccountByUID(ctx context.Context, uid string) models.Lookup[models.Record] {
	return c.get("account:"+uid, func() models.Lookup[models.Record] { return c.next.AccountByUID(ctx, uid) })
}

func (c *lookupCache) RefundByUID(ctx context.Context, uid string) models.Lookup[models.Record] {
	return c.get("refund:"+uid, func() models.Lookup[models.Record] { return c.next.RefundByUID(ctx, uid) })
}

func (c *lookupCache) ProviderByUUID(ctx context.Context, uuid string) models.Lookup[models.Record] {
	return c.get("provider:"+uuid, func() models.Lookup[models.Record] { return c.next.ProviderByUUID(ctx, uuid) })
}

func (c *lookupCache) get(key string, load func() models.Lookup[models.Record]) models.Lookup[models.Record] {
	c.mu.RLock()
	l, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return l
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		l, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return l, nil
		}

		l = load()
		if !l.IsFailed() {
			c.mu.Lock()
			c.entries[key] = l
			c.mu.Unlock()
		}
		return l, nil
	})
	return v.(models.Lookup[models.Record])
}

// Len returns the number of cached entries.
func (c *lookupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

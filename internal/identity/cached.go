package identity

import (
	"context"
	"sync"
	"time"

	"github.com/pulivilizator/billmgr-addon/model"
)

// CacheRecorder counts cache outcomes. *observability.Metrics implements it.
type CacheRecorder interface {
	RecordIdentityCacheHit()
	RecordIdentityCacheMiss()
}

type cacheEntry struct {
	identity *model.Identity
	expires  time.Time
}

// Cached memoizes lookups per token and address for a fixed TTL. Rejections
// are cached as well; errors are not.
type Cached struct {
	next     model.IdentityLookup
	ttl      time.Duration
	recorder CacheRecorder
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCached wraps next. A nil recorder disables counting.
func NewCached(next model.IdentityLookup, ttl time.Duration, recorder CacheRecorder) *Cached {
	return &Cached{
		next:     next,
		ttl:      ttl,
		recorder: recorder,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
}

// LookupIdentity returns the cached identity or asks the wrapped lookup.
func (c *Cached) LookupIdentity(ctx context.Context, token, remoteAddr string) (*model.Identity, error) {
	key := token + "|" + remoteAddr
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expires) {
		if c.recorder != nil {
			c.recorder.RecordIdentityCacheHit()
		}
		return e.identity, nil
	}
	if c.recorder != nil {
		c.recorder.RecordIdentityCacheMiss()
	}

	id, err := c.next.LookupIdentity(ctx, token, remoteAddr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.evictExpired(now)
	c.entries[key] = cacheEntry{identity: id, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return id, nil
}

// evictExpired drops stale entries. Callers hold mu.
func (c *Cached) evictExpired(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

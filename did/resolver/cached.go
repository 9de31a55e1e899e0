package resolver

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-did-credential/did"
)

// DefaultCacheTTL is used when NewCached receives a non-positive ttl.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	doc     *did.Document
	expires time.Time
}

// Cached keeps successful resolutions of next for ttl. Concurrent misses for
// the same DID share one upstream call. Failures are not cached.
type Cached struct {
	next did.Resolver
	ttl  time.Duration

	mu      sync.Mutex
	entries map[did.DID]cacheEntry
	group   singleflight.Group

	now func() time.Time
}

func NewCached(next did.Resolver, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:    next,
		ttl:     ttl,
		entries: make(map[did.DID]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cached) Resolve(id did.DID) (*did.Document, error) {
	if doc, ok := c.lookup(id); ok {
		return doc, nil
	}

	v, err, shared := c.group.Do(id.String(), func() (interface{}, error) {
		doc, err := c.next.Resolve(id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[id] = cacheEntry{doc: doc.Clone(), expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.WithField("did", id.String()).Debug("shared in-flight DID resolution")
	}

	return v.(*did.Document).Clone(), nil
}

func (c *Cached) lookup(id did.DID) (*did.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, id)
		return nil, false
	}
	return entry.doc.Clone(), true
}

// Invalidate drops the cached document for id.
func (c *Cached) Invalidate(id did.DID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Purge drops every cached document.
func (c *Cached) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[did.DID]cacheEntry)
}

// Len returns the number of cached documents, expired ones included.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

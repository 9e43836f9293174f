package session

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	key       string
	subject   string
	value     V
	expiresAt time.Time
}

// Cache maps session tokens to resolved identities of type V.
// It is safe for concurrent use.
type Cache[V any] struct {
	subjectOf func(V) string
	opts      *options

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List
	gen      uint64

	group singleflight.Group
}

// NewCache creates a cache. subjectOf extracts the subject id used by
// [Cache.InvalidateBySubject].
func NewCache[V any](subjectOf func(V) string, opts ...Option) *Cache[V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Cache[V]{
		subjectOf: subjectOf,
		opts:      o,
		items:     make(map[string]*list.Element),
		eviction:  list.New(),
	}
}

// TTL returns the default entry lifetime.
func (c *Cache[V]) TTL() time.Duration {
	return c.opts.ttl
}

// Get returns the identity cached for token if present and unexpired.
func (c *Cache[V]) Get(token string) (V, bool) {
	return c.get(digest(token))
}

func (c *Cache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if c.opts.now().After(e.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.eviction.MoveToFront(elem)
	return e.value, true
}

// Put stores identity for token, overwriting any existing entry. A ttl of
// zero or less uses the cache default.
func (c *Cache[V]) Put(token string, identity V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.putLocked(digest(token), identity, ttl)
}

func (c *Cache[V]) putLocked(key string, identity V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.ttl
	}
	expiresAt := c.opts.now().Add(ttl)
	subject := c.subjectOf(identity)

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = identity
		e.subject = subject
		e.expiresAt = expiresAt
		c.eviction.MoveToFront(elem)
		return
	}

	if c.opts.maxEntries > 0 && len(c.items) >= c.opts.maxEntries {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	e := &entry[V]{key: key, subject: subject, value: identity, expiresAt: expiresAt}
	c.items[key] = c.eviction.PushFront(e)
}

// Delete removes the entry for token, if any.
func (c *Cache[V]) Delete(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[digest(token)]; ok {
		c.removeElement(elem)
	}
}

// InvalidateBySubject removes every entry whose identity belongs to subject
// and returns how many were removed.
func (c *Cache[V]) InvalidateBySubject(subject string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	removed := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry[V]).subject == subject {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Len returns the number of entries, including expired ones not yet read.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	removed := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[V]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Resolve returns the cached identity for token, or calls fn on a miss and
// caches its result for the TTL fn returns (zero selects the default).
// Concurrent misses for the same token share one call to fn. hit reports
// whether the value came from the cache. Errors from fn are returned as is
// and nothing is cached.
func (c *Cache[V]) Resolve(ctx context.Context, token string, fn func(ctx context.Context) (V, time.Duration, error)) (identity V, hit bool, err error) {
	key := digest(token)
	if v, ok := c.get(key); ok {
		return v, true, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}

		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		v, ttl, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen == gen {
			c.putLocked(key, v, min(ttl, c.opts.ttl))
		}
		c.mu.Unlock()

		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	return res.(V), false, nil
}

// removeElement unlinks elem. Caller must hold the mutex.
func (c *Cache[V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

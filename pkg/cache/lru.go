// Package cache implements the fingerprint-keyed response cache:
// a bounded, strictly-LRU store with per-entry TTL. No library in
// the retrieval pack provides an LRU cache, so this is built directly on
// container/list + map, the standard idiom for a bounded LRU in Go.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// Entry is one cached response, keyed by request fingerprint.
type Entry struct {
	Fingerprint normalize.Fingerprint
	Response    []byte
	StatusCode  int
	Headers     map[string][]string
	StoredAt    time.Time
	ExpiresAt   time.Time
	Size        int // bytes charged against the cache's MaxBytes budget
}

// entrySize is the byte cost charged against the cache's size budget: the
// response body plus a rough accounting of header key/value bytes, since
// headers are retained and replayed verbatim on a hit.
func entrySize(resp []byte, headers map[string][]string) int {
	n := len(resp)
	for k, vs := range headers {
		for _, v := range vs {
			n += len(k) + len(v)
		}
	}
	return n
}

func (e Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

type element struct {
	key   normalize.Fingerprint
	entry Entry
}

// Cache is a bounded, strictly-ordered LRU response cache. All operations
// are atomic with respect to one another: a single mutex guards both the
// index map and the recency list, so a Get that observes a key also
// observes it at its current (not stale) position.
type Cache struct {
	mu       sync.Mutex
	maxItems int
	maxBytes int64
	curBytes int64
	order    *list.List // front = most recently used
	index    map[normalize.Fingerprint]*list.Element
	metrics  *obs.Metrics

	hits   uint64
	misses uint64
}

// New builds a Cache bounded to maxItems entries and maxBytes total response
// bytes. maxItems <= 0 disables the cache (Get always misses, Set is a
// no-op) rather than growing unbounded. maxBytes <= 0 leaves the byte total
// unbounded, enforcing only the entry-count ceiling.
func New(maxItems int, maxBytes int64, metrics *obs.Metrics) *Cache {
	return &Cache{
		maxItems: maxItems,
		maxBytes: maxBytes,
		order:    list.New(),
		index:    make(map[normalize.Fingerprint]*list.Element),
		metrics:  metrics,
	}
}

// Get returns the cached entry for fp if present and unexpired, and marks
// it most-recently-used. A present-but-expired entry is evicted lazily on
// access, since the overhead of a separate reaper goroutine isn't
// justified for a bounded LRU where every entry is already touched on read
// or write.
func (c *Cache) Get(fp normalize.Fingerprint) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[fp]
	if !ok {
		c.recordMiss()
		return Entry{}, false
	}

	ent := el.Value.(*element).entry
	if ent.expired(time.Now()) {
		c.removeElement(el)
		c.recordMiss()
		return Entry{}, false
	}

	c.order.MoveToFront(el)
	c.recordHit()
	return ent, true
}

// Set inserts or refreshes an entry for fp, evicting least-recently-used
// entries first until both the entry-count and byte-size ceilings hold.
func (c *Cache) Set(fp normalize.Fingerprint, resp []byte, status int, headers map[string][]string, ttl time.Duration) {
	if c.maxItems <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	ent := Entry{
		Fingerprint: fp,
		Response:    resp,
		StatusCode:  status,
		Headers:     headers,
		StoredAt:    now,
		ExpiresAt:   now.Add(ttl),
		Size:        entrySize(resp, headers),
	}

	if el, ok := c.index[fp]; ok {
		c.curBytes -= int64(el.Value.(*element).entry.Size)
		el.Value.(*element).entry = ent
		c.curBytes += int64(ent.Size)
		c.order.MoveToFront(el)
		c.evict()
		return
	}

	el := c.order.PushFront(&element{key: fp, entry: ent})
	c.index[fp] = el
	c.curBytes += int64(ent.Size)

	c.evict()
}

// evict drops least-recently-used entries until both the entry-count and
// byte-size ceilings hold simultaneously.
func (c *Cache) evict() {
	for c.order.Len() > c.maxItems || (c.maxBytes > 0 && c.curBytes > c.maxBytes) {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
	}
}

// Invalidate removes fp from the cache, if present.
func (c *Cache) Invalidate(fp normalize.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[fp]; ok {
		c.removeElement(el)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[normalize.Fingerprint]*list.Element)
	c.curBytes = 0
}

// Stats is a point-in-time snapshot of cache occupancy and hit ratio.
type Stats struct {
	Items    int
	Max      int
	Bytes    int64
	MaxBytes int64
	Hits     uint64
	Misses   uint64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Items: c.order.Len(), Max: c.maxItems,
		Bytes: c.curBytes, MaxBytes: c.maxBytes,
		Hits: c.hits, Misses: c.misses,
	}
}

func (c *Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	e := el.Value.(*element)
	c.curBytes -= int64(e.entry.Size)
	delete(c.index, e.key)
}

func (c *Cache) recordHit() {
	c.hits++
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
}

func (c *Cache) recordMiss() {
	c.misses++
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
}

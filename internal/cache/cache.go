// Package cache keeps rendered markdown in a byte-bounded LRU so re-scans and
// page views skip documents that did not change.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/h4x3rotab/repoview/internal/metrics"
	"github.com/h4x3rotab/repoview/internal/renderer"
)

// LRU caches strings with least-recently-used eviction once the total size
// exceeds maxSize bytes.
type LRU struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	// sentinel nodes of the recency list; head.next is the most recent
	head *entry
	tail *entry

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key   string
	value string
	size  int64
	prev  *entry
	next  *entry
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates an LRU holding at most maxSize bytes of keys and values.
func New(maxSize int64) *LRU {
	c := &LRU{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		head:    &entry{},
		tail:    &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get returns the cached value and marks it recently used.
func (c *LRU) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}
	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)

	return e.value, true
}

// Set stores value under key. Values larger than the whole cache are not
// stored.
func (c *LRU) Set(key, value string) {
	size := int64(len(key) + len(value))

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeFromList(e)
		delete(c.entries, key)
		c.currentSize -= e.size
	}
	if size > c.maxSize {
		return
	}
	c.evictIfNeeded(size)

	e := &entry{key: key, value: value, size: size}
	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
}

// Clear drops every entry. Counters are kept.
func (c *LRU) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*entry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns the current counters.
func (c *LRU) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return Stats{
		Entries:   len(c.entries),
		Size:      c.currentSize,
		MaxSize:   c.maxSize,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

func (c *LRU) evictIfNeeded(newSize int64) {
	for c.currentSize+newSize > c.maxSize && c.tail.prev != c.head {
		lru := c.tail.prev
		c.removeFromList(lru)
		delete(c.entries, lru.key)
		c.currentSize -= lru.size
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *LRU) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *LRU) moveToFront(e *entry) {
	c.removeFromList(e)
	c.addToFront(e)
}

// Markdown is the rendering call the cache sits in front of.
type Markdown interface {
	Render(source []byte, rc renderer.Context) (string, error)
}

// CachedMarkdown memoizes a Markdown renderer by source content and render
// context. Failed renders are not cached.
type CachedMarkdown struct {
	inner Markdown
	cache *LRU
}

// NewMarkdown wraps inner. A nil cache renders every call.
func NewMarkdown(inner Markdown, cache *LRU) *CachedMarkdown {
	return &CachedMarkdown{inner: inner, cache: cache}
}

// Render returns the cached output for the same source and base directory,
// rendering on a miss.
func (m *CachedMarkdown) Render(source []byte, rc renderer.Context) (string, error) {
	if m.cache == nil {
		return m.inner.Render(source, rc)
	}

	key := renderKey(source, rc)
	if html, ok := m.cache.Get(key); ok {
		metrics.RecordRenderCache(true)
		return html, nil
	}
	metrics.RecordRenderCache(false)

	html, err := m.inner.Render(source, rc)
	if err != nil {
		return "", err
	}
	m.cache.Set(key, html)

	return html, nil
}

// Stats reports the underlying cache counters, zero without a cache.
func (m *CachedMarkdown) Stats() Stats {
	if m.cache == nil {
		return Stats{}
	}
	return m.cache.Stats()
}

func renderKey(source []byte, rc renderer.Context) string {
	h := sha256.New()
	h.Write([]byte(rc.BaseDir))
	h.Write([]byte{0})
	h.Write(source)

	return hex.EncodeToString(h.Sum(nil))
}

package kv

import (
	"container/list"
	"sync"
)

// DefinitionCache memoizes table/field/index/user definitions by their
// canonical key bytes, evicting least-recently-used entries once full
// (spec.md §4.6). The LRU strategy mirrors the teacher's QueryCache
// (container/list + map, O(1) eviction) generalized from caching parsed
// statements to caching decoded definition bodies.
type DefinitionCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
}

type cacheEntry struct {
	key   string
	value []byte
}

// NewDefinitionCache creates a cache holding at most maxSize entries.
func NewDefinitionCache(maxSize int) *DefinitionCache {
	if maxSize <= 0 {
		maxSize = 2048
	}
	return &DefinitionCache{
		entries: make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the cached value for key, promoting it to most-recently-used.
func (c *DefinitionCache) Get(key []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[string(key)]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).value, true
}

// Put inserts or updates the cached value for key.
func (c *DefinitionCache) Put(key, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[string(key)]; ok {
		elem.Value.(*cacheEntry).value = value
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.maxSize {
		tail := c.order.Back()
		if tail != nil {
			c.order.Remove(tail)
			delete(c.entries, tail.Value.(*cacheEntry).key)
		}
	}
	entry := &cacheEntry{key: string(key), value: value}
	elem := c.order.PushFront(entry)
	c.entries[string(key)] = elem
}

// InvalidatePrefix drops every cached entry whose key starts with prefix.
// Any mutation through a Transaction must call this as part of the same
// transaction (spec.md §4.6).
func (c *DefinitionCache) InvalidatePrefix(prefix []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := string(prefix)
	for key, elem := range c.entries {
		if len(key) >= len(p) && key[:len(p)] == p {
			c.order.Remove(elem)
			delete(c.entries, key)
		}
	}
}

// Size returns the number of cached entries.
func (c *DefinitionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

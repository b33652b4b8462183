package cache

import (
	"container/list"
	"sync"
)

type entry struct {
	key   string
	value string
}

// TokenCache is a thread-safe LRU cache of string tokens, used to avoid
// recomputing keyed hashes for repeated cell values within a run.
type TokenCache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
	mutex    sync.Mutex

	hits   int64
	misses int64
}

// NewTokenCache creates a cache holding up to capacity tokens. A capacity
// of zero or less disables caching.
func NewTokenCache(capacity int) *TokenCache {
	return &TokenCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached token for key, if present.
func (c *TokenCache) Get(key string) (string, bool) {
	if c.capacity <= 0 {
		return "", false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return "", false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return elem.Value.(*entry).value, true
}

// Set stores a token, evicting the least recently used one when full.
func (c *TokenCache) Set(key, value string) {
	if c.capacity <= 0 {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).value = value
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value})
}

// Len returns the number of cached tokens.
func (c *TokenCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.order.Len()
}

// Clear removes all cached tokens.
func (c *TokenCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
}

// Stats returns hit/miss counters.
func (c *TokenCache) Stats() (hits, misses int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.hits, c.misses
}

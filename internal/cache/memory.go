package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const DefaultMaxEntries = 1024

type memoryItem struct {
	key  string
	resp *CachedResponse
}

// InMemoryCache is an LRU bounded by entry count. Expired entries are
// dropped when read.
type InMemoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	lru        *list.List
	maxEntries int
	now        func() time.Time
}

func NewInMemoryCache(maxEntries int) *InMemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &InMemoryCache{
		items:      make(map[string]*list.Element, maxEntries),
		lru:        list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*memoryItem)

	if item.resp.Expired(c.now()) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	return item.resp, true
}

func (c *InMemoryCache) Set(ctx context.Context, key string, resp *CachedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*memoryItem).resp = resp
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(&memoryItem{key: key, resp: resp})

	if c.lru.Len() > c.maxEntries {
		c.evictOldest()
	}
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.Remove(elem)
		delete(c.items, key)
	}
}

func (c *InMemoryCache) Purge(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.maxEntries)
	c.lru.Init()
}

func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// evictOldest must be called with c.mu held.
func (c *InMemoryCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	delete(c.items, elem.Value.(*memoryItem).key)
}

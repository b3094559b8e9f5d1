package storage

import (
	"container/list"
	"sync"
	"time"
)

type cacheItem struct {
	key       string
	value     []byte
	timestamp time.Time
}

// MemoryCache is an LRU cache with optional TTL. Expired entries are dropped
// lazily on access.
type MemoryCache struct {
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lruList *list.List
	mu      sync.Mutex
	now     func() time.Time
}

func NewMemoryCache(maxSize int) *MemoryCache {
	return NewMemoryCacheWithTTL(maxSize, 0)
}

func NewMemoryCacheWithTTL(maxSize int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lruList: list.New(),
		now:     time.Now,
	}
}

func (mc *MemoryCache) Set(key string, value []byte) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	stored := append([]byte(nil), value...)
	if element, exists := mc.items[key]; exists {
		item := element.Value.(*cacheItem)
		item.value = stored
		item.timestamp = mc.now()
		mc.lruList.MoveToFront(element)
		return
	}

	mc.items[key] = mc.lruList.PushFront(&cacheItem{
		key:       key,
		value:     stored,
		timestamp: mc.now(),
	})

	for mc.maxSize > 0 && len(mc.items) > mc.maxSize {
		mc.removeElement(mc.lruList.Back())
	}
}

func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	element, exists := mc.items[key]
	if !exists {
		return nil, false
	}

	item := element.Value.(*cacheItem)
	if mc.ttl > 0 && mc.now().Sub(item.timestamp) > mc.ttl {
		mc.removeElement(element)
		return nil, false
	}

	mc.lruList.MoveToFront(element)
	return item.value, true
}

func (mc *MemoryCache) Delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.items[key]; exists {
		mc.removeElement(element)
	}
}

func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items = make(map[string]*list.Element)
	mc.lruList.Init()
}

// Len returns the number of cached entries, expired or not
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

func (mc *MemoryCache) removeElement(element *list.Element) {
	item := element.Value.(*cacheItem)
	delete(mc.items, item.key)
	mc.lruList.Remove(element)
}

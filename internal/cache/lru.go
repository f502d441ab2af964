package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruItem struct {
	key        string
	value      any
	cost       int64
	expiration time.Time
}

// lru is a thread-safe LRU with a TTL, an entry-count cap and a byte-cost
// cap. Eviction drops least-recently-used entries until both caps hold.
type lru struct {
	capacity  int
	costLimit int64
	ttl       time.Duration
	now       func() time.Time

	mu        sync.Mutex
	items     map[string]*list.Element
	evictList *list.List
	totalCost int64
}

func newLRU(capacity int, costLimit int64, ttl time.Duration, now func() time.Time) *lru {
	if now == nil {
		now = time.Now
	}
	return &lru{
		capacity:  capacity,
		costLimit: costLimit,
		ttl:       ttl,
		now:       now,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

func (c *lru) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*lruItem)
	if c.now().After(item.expiration) {
		c.removeElement(elem)
		return nil, false
	}
	c.evictList.MoveToFront(elem)
	return item.value, true
}

func (c *lru) set(key string, value any, cost int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiration := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*lruItem)
		c.totalCost += cost - item.cost
		item.value = value
		item.cost = cost
		item.expiration = expiration
		c.evictList.MoveToFront(elem)
		c.enforceLimits()
		return
	}

	elem := c.evictList.PushFront(&lruItem{
		key:        key,
		value:      value,
		cost:       cost,
		expiration: expiration,
	})
	c.items[key] = elem
	c.totalCost += cost
	c.enforceLimits()
}

func (c *lru) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *lru) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.totalCost = 0
}

func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *lru) enforceLimits() {
	for c.evictList.Len() > c.capacity || (c.costLimit > 0 && c.totalCost > c.costLimit) {
		elem := c.evictList.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *lru) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	item := elem.Value.(*lruItem)
	delete(c.items, item.key)
	c.totalCost -= item.cost
}

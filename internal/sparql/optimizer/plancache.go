package optimizer

import (
	"container/list"
	"sync"

	"github.com/zeebo/xxh3"
)

// PlanCache is a bounded LRU of optimized plans keyed by query source hash.
// Entries are invalidated when the store's statistics version (StatsTxID)
// advances past the version recorded at insertion time, since a stale plan
// may reorder patterns against cardinalities that no longer hold.
type PlanCache struct {
	mu       sync.Mutex
	capacity int
	items    map[uint64]*list.Element
	order    *list.List
}

type planCacheEntry struct {
	key       uint64
	plan      QueryPlan
	statsTxID int64
}

// NewPlanCache creates an LRU plan cache holding up to capacity entries.
func NewPlanCache(capacity int) *PlanCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &PlanCache{
		capacity: capacity,
		items:    make(map[uint64]*list.Element),
		order:    list.New(),
	}
}

// HashQuery computes the 64-bit xxh3 hash of a query's source text, used as
// the cache key.
func HashQuery(source string) uint64 {
	return xxh3.HashString(source)
}

// Get returns the cached plan for key if present and not stale relative to
// statsTxID.
func (c *PlanCache) Get(key uint64, statsTxID int64) (QueryPlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*planCacheEntry)
	if entry.statsTxID != statsTxID {
		// Stale: evict and report a miss.
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.plan, true
}

// Put stores plan under key, tagged with the statistics version it was
// computed against, evicting the least-recently-used entry if at capacity.
func (c *PlanCache) Put(key uint64, plan QueryPlan, statsTxID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*planCacheEntry).plan = plan
		elem.Value.(*planCacheEntry).statsTxID = statsTxID
		c.order.MoveToFront(elem)
		return
	}

	entry := &planCacheEntry{key: key, plan: plan, statsTxID: statsTxID}
	elem := c.order.PushFront(entry)
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*planCacheEntry).key)
		}
	}
}

// Len reports the number of entries currently cached.
func (c *PlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

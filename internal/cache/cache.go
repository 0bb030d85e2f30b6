package cache

import "sync"

// Cache is a thread-safe LRU cache with a hard entry limit and an eviction
// callback. Values that own external resources (GPU objects) are released
// in OnEvict, which runs for every entry that leaves the cache: on
// eviction, Delete and Clear.
//
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*lruNode[K, V]
	order   lruList[K, V]
	limit   int
	onEvict func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache holding at most limit entries. A limit of 0 means
// unlimited. onEvict may be nil.
func New[K comparable, V any](limit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*lruNode[K, V]),
		limit:   limit,
		onEvict: onEvict,
	}
}

// Get retrieves a value and marks it as recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.moveToFront(node)
	return node.value, true
}

// GetOrCreate returns the cached value for key or creates it. create runs
// under the cache lock so a key is never created twice; a create error is
// returned and nothing is stored.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	var evicted []*lruNode[K, V]
	defer func() {
		c.mu.Unlock()
		c.release(evicted)
	}()

	if node, ok := c.entries[key]; ok {
		c.hits++
		c.order.moveToFront(node)
		return node.value, nil
	}
	c.misses++

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = c.order.pushFront(key, value)
	evicted = c.trim()
	return value, nil
}

// Delete removes an entry, calling OnEvict for it. Returns true if the
// entry was found.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	node, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		c.order.unlink(node)
	}
	c.mu.Unlock()

	if ok {
		c.release([]*lruNode[K, V]{node})
	}
	return ok
}

// Clear removes every entry, least recently used first.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	var all []*lruNode[K, V]
	for node := c.order.removeOldest(); node != nil; node = c.order.removeOldest() {
		all = append(all, node)
	}
	c.entries = make(map[K]*lruNode[K, V])
	c.mu.Unlock()

	c.release(all)
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.limit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// trim unlinks least recently used entries until the cache is within its
// limit. Caller must hold c.mu.
func (c *Cache[K, V]) trim() []*lruNode[K, V] {
	if c.limit <= 0 {
		return nil
	}
	var out []*lruNode[K, V]
	for len(c.entries) > c.limit {
		node := c.order.removeOldest()
		delete(c.entries, node.key)
		c.evictions++
		out = append(out, node)
	}
	return out
}

// release runs OnEvict outside the lock.
func (c *Cache[K, V]) release(nodes []*lruNode[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, n := range nodes {
		c.onEvict(n.key, n.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the entry limit; 0 is unlimited.
	Capacity int
	// Hits and Misses count lookups through Get and GetOrCreate.
	Hits   uint64
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when there were no lookups.
	HitRate float64
	// Evictions counts entries removed to stay within Capacity.
	Evictions uint64
}

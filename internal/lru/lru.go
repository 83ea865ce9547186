package lru

import "container/list"

// Cache is a bounded LRU with O(1) get, put, and eviction. It is not
// internally locked; callers that share a Cache across goroutines guard it
// with their own mutex.
type Cache[K comparable, V any] struct {
	capacity int
	order    *list.List // Front = most recently used.
	items    map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a Cache holding at most capacity entries. A capacity of 0 or
// less means 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

// Get returns the cached value and promotes it to most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Put inserts or updates a value, promoting it to most recently used, and
// evicts the least-recently-used entry while over capacity.
func (c *Cache[K, V]) Put(key K, value V) {
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry[K, V]{key: key, value: value})
	c.items[key] = el
	for c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes a key if present.
func (c *Cache[K, V]) Remove(key K) {
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Len returns the current number of entries.
func (c *Cache[K, V]) Len() int {
	return c.order.Len()
}

// OldestKey returns the next eviction target, if any.
func (c *Cache[K, V]) OldestKey() (K, bool) {
	back := c.order.Back()
	if back == nil {
		var zero K
		return zero, false
	}
	return back.Value.(*entry[K, V]).key, true
}

func (c *Cache[K, V]) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.order.Remove(back)
	delete(c.items, back.Value.(*entry[K, V]).key)
}

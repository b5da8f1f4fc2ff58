// Package rcache provides a bounded map ordered by most-recent use.
//
// Unlike a general LRU, Put never evicts when the cache is full. The
// capacity is a hard bound that is only enforced by Resize, which
// rebuilds the cache keeping the most-recently-used entries. This suits
// caches whose contents are trimmed by policy rather than by insertion
// pressure.
//
// Cache is not safe for concurrent use. It is intended to be owned and
// driven by a single goroutine.
package rcache

import "container/list"

// Cache is a fixed-capacity map whose entries are ordered from most to
// least recently used. Get and Put move an entry to the most-recent
// position; Peek does not.
type Cache[K comparable, V any] struct {
	capacity int
	order    *list.List
	index    map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a cache with the given capacity. The capacity is
// advisory for Put; it is enforced only by Resize.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[K]*list.Element),
	}
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	return len(c.index)
}

// Cap returns the cache capacity.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Peek returns the value stored for key without disturbing the recency
// order. The second return is false if the key is absent.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	if elem, ok := c.index[key]; ok {
		return elem.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Get returns the value stored for key and moves the entry to the
// most-recent position. The second return is false if the key is
// absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if elem, ok := c.index[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put stores value for key at the most-recent position, replacing any
// existing value. Put never evicts other entries, even when the cache
// is over capacity.
func (c *Cache[K, V]) Put(key K, value V) {
	if elem, ok := c.index[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(elem)
		return
	}
	c.index[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// Replace updates the value for an existing key without disturbing
// the recency order, reporting whether the key was present.
func (c *Cache[K, V]) Replace(key K, value V) bool {
	elem, ok := c.index[key]
	if !ok {
		return false
	}
	elem.Value.(*entry[K, V]).value = value
	return true
}

// Delete removes the entry for key, reporting whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	elem, ok := c.index[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.index, key)
	return true
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.order.Init()
	clear(c.index)
}

// Each calls fn for each entry from most to least recently used,
// stopping early if fn returns false. The cache must not be modified
// during iteration; callers that mutate use Keys instead.
func (c *Cache[K, V]) Each(fn func(K, V) bool) {
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*entry[K, V])
		if !fn(ent.key, ent.value) {
			return
		}
	}
}

// EachReverse calls fn for each entry from least to most recently
// used, stopping early if fn returns false.
func (c *Cache[K, V]) EachReverse(fn func(K, V) bool) {
	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		ent := elem.Value.(*entry[K, V])
		if !fn(ent.key, ent.value) {
			return
		}
	}
}

// Keys returns a snapshot of the keys from most to least recently
// used. The snapshot remains valid across cache mutation.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.index))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[K, V]).key)
	}
	return keys
}

// Resize rebuilds the cache with a new capacity, retaining the
// newCapacity most-recently-used entries in their current order.
func (c *Cache[K, V]) Resize(newCapacity int) {
	order := list.New()
	index := make(map[K]*list.Element)
	var kept int
	for elem := c.order.Front(); elem != nil && kept < newCapacity; elem = elem.Next() {
		ent := elem.Value.(*entry[K, V])
		index[ent.key] = order.PushBack(&entry[K, V]{key: ent.key, value: ent.value})
		kept++
	}
	c.capacity = newCapacity
	c.order = order
	c.index = index
}

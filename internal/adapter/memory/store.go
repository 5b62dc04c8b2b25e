package memory

import (
	"sync"

	"github.com/Strob0t/DevPlane/internal/domain"
)

// Collection is a generic keyed, insertion-ordered record store. One
// RWMutex per collection makes each operation individually atomic;
// cross-collection transactions are not supported.
type Collection[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
	order []string
}

// NewCollection creates an empty collection.
func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{items: make(map[string]*T)}
}

// Insert adds a record under id. Returns conflict if the id exists.
func (c *Collection[T]) Insert(id string, item *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; ok {
		return domain.Conflictf("id %s already exists", id)
	}
	c.items[id] = item
	c.order = append(c.order, id)
	return nil
}

// Get returns a copy of the record for id.
func (c *Collection[T]) Get(id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *item
	return &out, nil
}

// Update applies fn to the record for id under the write lock.
func (c *Collection[T]) Update(id string, fn func(*T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	return fn(item)
}

// Delete removes the record for id.
func (c *Collection[T]) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns copies of the records in insertion order. A nil filter
// matches all.
func (c *Collection[T]) List(filter func(*T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		item := c.items[id]
		if filter == nil || filter(item) {
			out = append(out, *item)
		}
	}
	return out
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

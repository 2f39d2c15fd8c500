package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/flexprice/parkingpermits/internal/errors"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// InMemoryStore implements a generic in-memory store. Items are cloned on the
// way in and out so callers never share state with the store, the same way
// rows read from a database are fresh values.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
	clone func(T) T
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any](clone func(T) T) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items: make(map[string]T),
		clone: clone,
	}
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewError("item already exists").
			WithHintf("An item with id %s already exists", id).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[id] = s.clone(item)
	s.order = append(s.order, id)
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return s.clone(item), nil
	}

	var zero T
	return zero, notFound(id)
}

// List returns the items accepted by filterFn in insertion order, or sorted by sortFn when given
func (s *InMemoryStore[T]) List(ctx context.Context, filterFn FilterFunc[T], sortFn SortFunc[T]) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for _, id := range s.order {
		item, exists := s.items[id]
		if !exists {
			continue
		}
		if filterFn != nil && !filterFn(ctx, item) {
			continue
		}
		result = append(result, s.clone(item))
	}

	if sortFn != nil {
		sort.SliceStable(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}
	return result
}

// Find returns the first item accepted by filterFn
func (s *InMemoryStore[T]) Find(ctx context.Context, filterFn FilterFunc[T]) (T, bool) {
	items := s.List(ctx, filterFn, nil)
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	return items[0], true
}

// Count counts items accepted by filterFn
func (s *InMemoryStore[T]) Count(ctx context.Context, filterFn FilterFunc[T]) int {
	return len(s.List(ctx, filterFn, nil))
}

// Update replaces an existing item
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return notFound(id)
	}

	s.items[id] = s.clone(item)
	return nil
}

// Delete removes an item from the store
func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return notFound(id)
	}

	delete(s.items, id)
	return nil
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.order = nil
}

func notFound(id string) error {
	return ierr.NewError("item not found").
		WithHintf("No item with id %s", id).
		WithReportableDetails(map[string]any{"id": id}).
		Mark(ierr.ErrNotFound)
}

func matchesAny[T comparable](values []T, v T) bool {
	if len(values) == 0 {
		return true
	}
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

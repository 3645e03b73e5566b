// Package bounded provides fixed-capacity containers. Growing a container past
// its capacity returns an error instead of panicking, so limits on attacker
// supplied data surface as ordinary validation failures.
package bounded

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned (wrapped) whenever a container is full.
var ErrCapacityExceeded = errors.New("bounded capacity exceeded")

// Vec is an ordered list holding at most Cap items.
type Vec[T any] struct {
	items []T
	limit int
}

// NewVec creates an empty vector with the given capacity.
func NewVec[T any](limit int) Vec[T] {
	return Vec[T]{limit: limit}
}

// VecFrom copies items into a new vector, failing if there are too many.
func VecFrom[T any](limit int, items []T) (Vec[T], error) {
	if len(items) > limit {
		return Vec[T]{}, fmt.Errorf("%w: %d > %d", ErrCapacityExceeded, len(items), limit)
	}
	cp := make([]T, len(items))
	copy(cp, items)
	return Vec[T]{items: cp, limit: limit}, nil
}

// TryPush appends v if there is room.
func (v *Vec[T]) TryPush(item T) error {
	if len(v.items) >= v.limit {
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, v.limit)
	}
	v.items = append(v.items, item)
	return nil
}

// PopFront removes and returns the first item.
func (v *Vec[T]) PopFront() (T, bool) {
	var zero T
	if len(v.items) == 0 {
		return zero, false
	}
	head := v.items[0]
	v.items = v.items[1:]
	return head, true
}

func (v Vec[T]) Len() int {
	return len(v.items)
}

func (v Vec[T]) Cap() int {
	return v.limit
}

func (v Vec[T]) IsFull() bool {
	return len(v.items) >= v.limit
}

// Items returns a copy of the contents.
func (v Vec[T]) Items() []T {
	cp := make([]T, len(v.items))
	copy(cp, v.items)
	return cp
}

// Set is a duplicate-free list holding at most Cap items, in insertion order.
type Set[T comparable] struct {
	Vec[T]
}

// NewSet creates an empty set with the given capacity.
func NewSet[T comparable](limit int) Set[T] {
	return Set[T]{NewVec[T](limit)}
}

// SetFrom builds a set, dropping duplicates before checking the capacity.
func SetFrom[T comparable](limit int, items []T) (Set[T], error) {
	s := NewSet[T](limit)
	for _, it := range items {
		if _, err := s.Insert(it); err != nil {
			return Set[T]{}, err
		}
	}
	return s, nil
}

// Contains reports whether v is in the set.
func (s Set[T]) Contains(item T) bool {
	for _, it := range s.items {
		if it == item {
			return true
		}
	}
	return false
}

// Insert adds item unless it is already present. It reports whether the set
// changed.
func (s *Set[T]) Insert(item T) (bool, error) {
	if s.Contains(item) {
		return false, nil
	}
	if err := s.TryPush(item); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes item and reports whether it was present.
func (s *Set[T]) Remove(item T) bool {
	for i, it := range s.items {
		if it == item {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

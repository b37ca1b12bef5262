package main

import (
	"sync"
)

// SafeState is a value shared between the run loop and event goroutines.
type SafeState[T comparable] struct {
	value T
	mu    sync.RWMutex
}

func NewSafeState[T comparable](initialValue T) *SafeState[T] {
	return &SafeState[T]{
		value: initialValue,
	}
}

func (s *SafeState[T]) Set(newState T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = newState
}

func (s *SafeState[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Swap stores newState and reports whether it differs from the old value.
func (s *SafeState[T]) Swap(newState T) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.value != newState
	s.value = newState
	return changed
}

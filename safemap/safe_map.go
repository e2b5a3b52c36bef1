// Package safemap provides a type-safe, concurrent map built on sync.Map that
// keeps a live entry count, so Len is O(1). It backs registries that are read
// far more often than they are written, such as the set of connected players.
package safemap

import (
	"sync"
	"sync/atomic"
)

// SafeMap is a concurrent map that is safe for use by multiple goroutines.
// It wraps sync.Map and exposes a generic, type-safe API. Every insert and
// delete goes through Swap / LoadOrStore / LoadAndDelete so the entry count
// stays exact under concurrent use.
//
// SafeMap must not be copied after first use.
type SafeMap[K comparable, V any] struct {
	m    sync.Map
	size atomic.Int64
}

// NewSafeMap returns a new, empty SafeMap ready for use.
//
// Returns:
//   - A pointer to a new SafeMap[K, V]
func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{}
}

// Store sets the value for key k, replacing any existing value.
//
// Parameters:
//   - k: The key to store
//   - v: The value to associate with k
func (m *SafeMap[K, V]) Store(k K, v V) {
	if _, loaded := m.m.Swap(k, v); !loaded {
		m.size.Add(1)
	}
}

// LoadOrStore returns the existing value for k if present. Otherwise it
// stores v and returns it.
//
// Parameters:
//   - k: The key to look up or store
//   - v: The value to store when k is absent
//
// Returns:
//   - The value now associated with k
//   - true if the value was already present, false if v was stored
func (m *SafeMap[K, V]) LoadOrStore(k K, v V) (V, bool) {
	actual, loaded := m.m.LoadOrStore(k, v)
	if !loaded {
		m.size.Add(1)
	}

	return actual.(V), loaded
}

// Load returns the value for key k and whether it was present. A missing
// key yields the zero value of V.
//
// Parameters:
//   - k: The key to look up
//
// Returns:
//   - The value associated with k, or the zero value of V if not found
//   - true if the key was present, false otherwise
func (m *SafeMap[K, V]) Load(k K) (V, bool) {
	v, found := m.m.Load(k)
	if !found {
		var empty V
		return empty, false
	}

	return v.(V), true
}

// Delete removes the entry for key k. Deleting a missing key is a no-op.
//
// Parameters:
//   - k: The key to delete
//
// Returns:
//   - true if an entry was removed
func (m *SafeMap[K, V]) Delete(k K) bool {
	if _, loaded := m.m.LoadAndDelete(k); loaded {
		m.size.Add(-1)
		return true
	}

	return false
}

// Range calls f for each entry until f returns false. Entries stored or
// deleted concurrently may or may not be visited.
//
// Parameters:
//   - f: Function called for each entry; return false to stop iteration
func (m *SafeMap[K, V]) Range(f func(k K, v V) bool) {
	m.m.Range(func(k, v any) bool {
		return f(k.(K), v.(V))
	})
}

// Len returns the number of entries in the map.
func (m *SafeMap[K, V]) Len() int {
	return int(m.size.Load())
}

// Has reports whether key k is present in the map.
func (m *SafeMap[K, V]) Has(k K) bool {
	_, found := m.m.Load(k)
	return found
}

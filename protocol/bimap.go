package protocol

import (
	"fmt"
)

// Bimap is an immutable bidirectional map, used for the vendor tables
// translating abstract values (inputs, scaling modes...) to wire codes
// and back. Build it once at init time with NewBimap.
type Bimap[K comparable, V comparable] struct {
	forward map[K]V
	reverse map[V]K
}

// NewBimap builds a Bimap from the given pairs. It panics if two keys
// map to the same value, since the table could not be reversed.
func NewBimap[K comparable, V comparable](pairs map[K]V) *Bimap[K, V] {
	m := &Bimap[K, V]{
		forward: make(map[K]V, len(pairs)),
		reverse: make(map[V]K, len(pairs)),
	}
	for k, v := range pairs {
		if prev, ok := m.reverse[v]; ok {
			panic(fmt.Errorf("duplicate value %v for keys %v and %v", v, prev, k))
		}
		m.forward[k] = v
		m.reverse[v] = k
	}
	return m
}

// Value returns the value for k.
func (m *Bimap[K, V]) Value(k K) (V, bool) {
	v, ok := m.forward[k]
	return v, ok
}

// Key returns the key for v.
func (m *Bimap[K, V]) Key(v V) (K, bool) {
	k, ok := m.reverse[v]
	return k, ok
}

// Len returns the number of pairs.
func (m *Bimap[K, V]) Len() int {
	return len(m.forward)
}

// Keys returns all keys in no particular order.
func (m *Bimap[K, V]) Keys() []K {
	keys := make([]K, 0, len(m.forward))
	for k := range m.forward {
		keys = append(keys, k)
	}
	return keys
}

package omap

import (
	"strings"

	"github.com/google/btree"
)

const treeDegree = 32

type entry[V any] struct {
	key string
	val V
}

// Map is an ordered, case-insensitive-keyed container of values of type
// V. The zero value is not usable; construct one with New.
type Map[V any] struct {
	tree *btree.BTreeG[entry[V]]
	size int
}

// New returns an empty Map.
func New[V any]() *Map[V] {
	less := func(a, b entry[V]) bool {
		return strings.ToLower(a.key) < strings.ToLower(b.key)
	}
	return &Map[V]{tree: btree.NewG(treeDegree, less)}
}

// Insert adds name->val. It reports false without modifying the map if
// name already exists (case-insensitively); the store's upsert algorithm
// (spec.md §4.3) only calls Insert after confirming the child is absent,
// but Insert still guards the invariant defensively.
func (m *Map[V]) Insert(name string, val V) bool {
	if _, ok := m.Lookup(name); ok {
		return false
	}
	m.tree.ReplaceOrInsert(entry[V]{key: name, val: val})
	m.size++
	return true
}

// Lookup returns the value stored under name (case-insensitively) and
// true, or the zero value and false if absent.
func (m *Map[V]) Lookup(name string) (V, bool) {
	item, ok := m.tree.Get(entry[V]{key: name})
	if !ok {
		var zero V
		return zero, false
	}
	return item.val, true
}

// Len returns the number of entries in the map.
func (m *Map[V]) Len() int { return m.size }

// Clear removes every entry.
func (m *Map[V]) Clear() {
	less := func(a, b entry[V]) bool {
		return strings.ToLower(a.key) < strings.ToLower(b.key)
	}
	m.tree = btree.NewG(treeDegree, less)
	m.size = 0
}

// Ascend calls fn for every entry in ascending case-insensitive key
// order, stopping early if fn returns false. It is the iteration
// primitive the store's Scan (spec.md §4.3) and the evaluator's LIST and
// LOOKUP are built on.
func (m *Map[V]) Ascend(fn func(name string, val V) bool) {
	m.tree.Ascend(func(e entry[V]) bool {
		return fn(e.key, e.val)
	})
}

// Values returns every value in ascending key order, as a convenience for
// callers that don't need early termination.
func (m *Map[V]) Values() []V {
	out := make([]V, 0, m.size)
	m.Ascend(func(_ string, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

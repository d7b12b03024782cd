// Package omap implements the ordered, name-keyed container (spec.md §4.2)
// used for every child collection in the store: a host's services,
// metrics, and attributes; a service's or metric's attributes.
//
// Keys are compared case-insensitively, matching the store's
// case-insensitive name uniqueness invariant (spec.md §3). Iteration
// visits entries in ascending case-insensitive order, which the
// evaluator's LIST and LOOKUP commands rely on for deterministic output
// (spec.md §8, "Scan determinism").
//
// Map is backed by github.com/google/btree's generic B-tree, giving
// amortized O(log n) insert/lookup and O(n) in-order iteration without a
// hand-rolled balanced tree (the original C implementation's
// utils/avltree.c, which this package replaces per the project's
// ecosystem-over-stdlib rule).
//
// Map does not lock internally: the store holds a single top-level
// sync.RWMutex guarding the whole hierarchy (spec.md §4.3), so the maps
// nested inside it need no lock of their own.
package omap

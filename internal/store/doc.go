// Package store implements the concurrent, hierarchical, mergeable object
// model at the heart of SysDB: hosts, each owning services, metrics, and
// attributes, with last-writer-wins semantics over timestamps and an
// exponentially smoothed update-interval estimate (spec.md §3, §4.3).
//
// The Store type owns every object it contains. Parent references are
// non-owning back-edges (spec.md §9: the reference-counted base object of
// the original C implementation is replaced here by the Go garbage
// collector plus a back-pointer that can never outlive the parent, since
// only the store's write path constructs objects and there is no
// deletion API).
//
// A single sync.RWMutex guards the whole hierarchy: writer methods take
// it exclusively, reader methods take it for read, and a full Scan holds
// the read lock for its entire traversal so that it observes a
// consistent snapshot (spec.md §5).
package store

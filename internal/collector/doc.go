// Package collector implements the single-threaded priority queue of
// periodic backend callbacks spec.md §4.11 describes: a min-heap of
// (next_fire, callback, interval) tasks with drift correction and
// skip-on-overrun semantics. It generalizes the familiar single
// ticker+context monitor loop to a container/heap-backed scheduler
// that supports many tasks with independent, possibly differing
// intervals, something a single time.Ticker cannot express.
package collector

// Package server implements the listener + worker pool frontend spec.md
// §4.10 describes: one Unix-socket listener per configured address, a
// bounded dispatch channel, and a fixed pool of worker goroutines that
// each own a connection for the duration of one read-dispatch-reply
// cycle before returning it to circulation. Shutdown is cooperative: a
// canceled context closes the listeners, drains the dispatch channel,
// and joins every worker.
//
// The accept-loop/worker-pool split replaces net/http's
// one-goroutine-per-request model with the fixed-size pool spec.md
// §4.10 requires for a raw length-prefixed protocol with no per-request
// framing from net/http to lean on.
package server

// Package persist applies index mutations to the durable store off the
// caller's goroutine.
//
// The engine dispatches instructions (Startup, Set, Delete, Shutdown) to a
// Worker. Dispatch never blocks on disk: instructions go into an unbounded
// FIFO mailbox and a single goroutine applies them in order, so two writes to
// the same key reach disk in the order they were issued.
//
// Durability is write-behind. While the process runs, the in-memory index is
// the read-of-record; across restarts the store is. Instructions that were
// dispatched but not yet applied when the process dies are lost, and store
// errors during Set or Delete are logged and counted, never returned to the
// caller. This trades immediate durability for latency on purpose.
package persist

// Package core provides the haredb engine.
//
// An Engine answers Get, Set and Delete from an in-memory index and relays
// every mutation to a persistence worker that writes it to disk in the
// background. In secure mode keys and values are encrypted before they reach
// the index, so neither memory nor disk holds plain text.
//
// Construction is the only blocking disk operation:
//   - secure the secret key in protected memory (secure mode only)
//   - open the store and reconcile its recorded mode with the requested one
//   - verify the key against the stored check string (secure mode only)
//   - load every row into the index
//   - close the handle and hand the path to the worker
//
// Close must be called on every exit path; it is idempotent. The engine does
// not install signal or exit hooks of its own.
package core

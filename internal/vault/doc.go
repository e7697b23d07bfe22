// Package vault keeps the haredb secret key in protected memory.
//
// The key lives in its own mmap'd region that is mlocked (never swapped) and
// held at PROT_NONE for its whole lifetime. The only way to read it is
// WithReadOnlyAccess, which flips the pages to read-only for the duration of
// a callback and back to no-access afterwards, even if the callback fails or
// panics.
//
// State transitions:
//
//	NoAccess -> ReadOnly -> NoAccess   (WithReadOnlyAccess)
//	NoAccess -> ReadWrite -> Released  (Release)
//
// A failure to allocate, lock or protect the region is reported as
// ErrFatalSecurity. Callers must treat it as unrecoverable.
package vault

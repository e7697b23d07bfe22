package vault

import "github.com/awnumar/memcall"

// memoryCaller wraps the memcall functions so tests can inject failures.
type memoryCaller interface {
	Alloc(size int) ([]byte, error)
	Free(b []byte) error
	Lock(b []byte) error
	Unlock(b []byte) error
	Protect(b []byte, mpf memcall.MemoryProtectionFlag) error
}

type memcallWrapper struct{}

var defaultMemcall memoryCaller = memcallWrapper{}

func (memcallWrapper) Alloc(size int) ([]byte, error) { return memcall.Alloc(size) }
func (memcallWrapper) Free(b []byte) error            { return memcall.Free(b) }
func (memcallWrapper) Lock(b []byte) error            { return memcall.Lock(b) }
func (memcallWrapper) Unlock(b []byte) error          { return memcall.Unlock(b) }

func (memcallWrapper) Protect(b []byte, mpf memcall.MemoryProtectionFlag) error {
	return memcall.Protect(b, mpf)
}

// clean unlocks and frees b, keeping the first error.
func clean(mc memoryCaller, b []byte) error {
	err := mc.Unlock(b)
	if err2 := mc.Free(b); err2 != nil && err == nil {
		err = err2
	}
	return err
}

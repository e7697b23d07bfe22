package vault

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/awnumar/memcall"
	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/illarion/haredb/internal/metrics"
)

// KeySize is the size of the protected key in bytes.
const KeySize = chacha20poly1305.KeySize

const kdfInfo = "haredb secret key v1"

var (
	ErrFatalSecurity = errors.New("secure memory unavailable")
	ErrReleased      = errors.New("vault already released")
	ErrEmptyKey      = errors.New("empty key material")
)

// State is the accessibility of the protected key buffer.
type State int

const (
	NoAccess State = iota
	ReadOnly
	ReadWrite
	Released
)

func (s State) String() string {
	switch s {
	case NoAccess:
		return "no-access"
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Vault owns the protected key buffer.
type Vault struct {
	mu    sync.Mutex
	mc    memoryCaller
	key   []byte
	state State
}

// Option configures Secure.
type Option func(*Vault)

func withMemoryCaller(mc memoryCaller) Option {
	return func(v *Vault) {
		v.mc = mc
	}
}

// Secure moves material into protected memory. The material slice is wiped
// before Secure returns, whatever the outcome.
//
// The material goes through a locked ephemeral buffer and is stretched with
// HKDF-SHA256 directly into the protected region, so the derived key never
// exists in ordinary heap memory.
func Secure(material []byte, opts ...Option) (v *Vault, err error) {
	if len(material) == 0 {
		return nil, ErrEmptyKey
	}

	v = &Vault{mc: defaultMemcall}
	for _, opt := range opts {
		opt(v)
	}

	// memguard panics when it cannot lock its buffer.
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: %v", ErrFatalSecurity, r)
		}
	}()

	ephemeral := memguard.NewBufferFromBytes(material)
	defer ephemeral.Destroy()

	buf, err := v.mc.Alloc(KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: allocate key buffer: %v", ErrFatalSecurity, err)
	}

	if err := v.mc.Lock(buf); err != nil {
		if err2 := v.mc.Free(buf); err2 != nil {
			err = errors.Wrap(err, err2.Error())
		}
		return nil, fmt.Errorf("%w: lock key buffer: %v", ErrFatalSecurity, err)
	}

	kdf := hkdf.New(sha256.New, ephemeral.Bytes(), nil, []byte(kdfInfo))
	if _, err := io.ReadFull(kdf, buf); err != nil {
		memguard.WipeBytes(buf)
		if err2 := clean(v.mc, buf); err2 != nil {
			err = errors.Wrap(err, err2.Error())
		}
		return nil, fmt.Errorf("derive key: %w", err)
	}

	if err := v.mc.Protect(buf, memcall.NoAccess()); err != nil {
		memguard.WipeBytes(buf)
		if err2 := clean(v.mc, buf); err2 != nil {
			err = errors.Wrap(err, err2.Error())
		}
		return nil, fmt.Errorf("%w: protect key buffer: %v", ErrFatalSecurity, err)
	}

	v.key = buf
	v.state = NoAccess

	metrics.SecretAllocated.Inc(1)
	metrics.SecretInUse.Inc(1)

	return v, nil
}

// State reports the current protection state.
func (v *Vault) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// WithReadOnlyAccess makes the key readable, passes it to fn and revokes
// access again before returning. fn must not retain the slice.
//
// If both fn and the revocation fail, the errors are combined.
func (v *Vault) WithReadOnlyAccess(fn func(key []byte) error) (err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == Released {
		return ErrReleased
	}

	if err := v.mc.Protect(v.key, memcall.ReadOnly()); err != nil {
		return errors.WithMessage(err, "unable to mark key read-only")
	}
	v.state = ReadOnly

	defer func() {
		if err2 := v.mc.Protect(v.key, memcall.NoAccess()); err2 != nil {
			if err == nil {
				err = errors.WithMessage(err2, "unable to mark key no-access")
				return
			}
			err = errors.WithMessage(err, err2.Error())
			return
		}
		v.state = NoAccess
	}()

	return fn(v.key)
}

// Apply is WithReadOnlyAccess for callbacks that produce a value.
func Apply[T any](v *Vault, fn func(key []byte) (T, error)) (T, error) {
	var out T
	err := v.WithReadOnlyAccess(func(key []byte) error {
		var err error
		out, err = fn(key)
		return err
	})
	return out, err
}

// Release wipes and frees the key. It is safe to call more than once and on
// a nil Vault.
func (v *Vault) Release() error {
	if v == nil {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == Released {
		return nil
	}

	if err := v.mc.Protect(v.key, memcall.ReadWrite()); err != nil {
		return errors.WithMessage(err, "unable to mark key read-write")
	}
	v.state = ReadWrite

	memguard.WipeBytes(v.key)
	err := clean(v.mc, v.key)

	v.key = nil
	v.state = Released
	metrics.SecretInUse.Dec(1)

	return err
}

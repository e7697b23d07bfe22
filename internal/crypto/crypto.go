package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/illarion/haredb/internal/metrics"
	"github.com/illarion/haredb/internal/vault"
)

const (
	NonceSize = chacha20poly1305.NonceSizeX // XChaCha20 nonce size
	TagSize   = chacha20poly1305.Overhead   // Poly1305 tag size

	sivLabel = "haredb key nonce v1"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryption        = errors.New("decryption failed")
)

// Codec encrypts and decrypts individual fields with the vault's key.
type Codec struct {
	vault     *vault.Vault
	newBuffer func([]byte) *memguard.LockedBuffer
}

// NewCodec creates a codec bound to v
func NewCodec(v *vault.Vault) *Codec {
	return &Codec{vault: v, newBuffer: memguard.NewBufferFromBytes}
}

// EncryptField encrypts a value under a fresh random nonce
func (c *Codec) EncryptField(plaintext string) (string, error) {
	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return "", err
	}
	return c.seal(plaintext, func([]byte, []byte) ([]byte, error) { return nonce, nil })
}

// EncryptKey encrypts a key deterministically. The nonce is an HMAC of the
// plaintext, so equal keys give equal ciphertexts and unequal keys never
// share a nonce.
func (c *Codec) EncryptKey(plaintext string) (string, error) {
	return c.seal(plaintext, syntheticNonce)
}

func (c *Codec) seal(plaintext string, nonceFn func(key, plaintext []byte) ([]byte, error)) (string, error) {
	defer metrics.EncryptTimer.UpdateSince(time.Now())

	// Locked transient copy of the plaintext, destroyed on return.
	transient, err := c.lockedCopy([]byte(plaintext))
	if err != nil {
		return "", err
	}
	defer transient.Destroy()

	sealed, err := vault.Apply(c.vault, func(key []byte) ([]byte, error) {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}

		nonce, err := nonceFn(key, transient.Bytes())
		if err != nil {
			return nil, err
		}

		out := make([]byte, NonceSize, NonceSize+transient.Size()+TagSize)
		copy(out, nonce)
		return aead.Seal(out, nonce, transient.Bytes(), nil), nil
	})
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// lockedCopy moves b into a locked buffer. memguard panics when it cannot
// allocate or lock one; that becomes ErrFatalSecurity.
func (c *Codec) lockedCopy(b []byte) (buf *memguard.LockedBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("%w: %v", vault.ErrFatalSecurity, r)
		}
	}()

	return c.newBuffer(b), nil
}

// DecryptField reverses EncryptField and EncryptKey. It fails closed: on any
// error no plaintext is returned.
func (c *Codec) DecryptField(cipherText string) (string, error) {
	defer metrics.DecryptTimer.UpdateSince(time.Now())

	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil || len(raw) < NonceSize+TagSize {
		metrics.DecryptFailures.Inc(1)
		return "", fmt.Errorf("%w: %w", ErrDecryption, ErrInvalidCiphertext)
	}

	plaintext, err := vault.Apply(c.vault, func(key []byte) ([]byte, error) {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}

		out, err := aead.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
		if err != nil {
			return nil, ErrDecryption
		}
		return out, nil
	})
	if err != nil {
		metrics.DecryptFailures.Inc(1)
		if errors.Is(err, ErrDecryption) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	s := string(plaintext)
	ClearBytes(plaintext)
	return s, nil
}

// syntheticNonce derives a nonce from the plaintext with a subkey separated
// from the encryption key.
func syntheticNonce(key, plaintext []byte) ([]byte, error) {
	sub := hmac.New(sha256.New, key)
	sub.Write([]byte(sivLabel))
	subkey := sub.Sum(nil)
	defer ClearBytes(subkey)

	mac := hmac.New(sha256.New, subkey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:NonceSize], nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

package core

import (
	"errors"

	"github.com/illarion/haredb/internal/crypto"
	"github.com/illarion/haredb/internal/vault"
)

var (
	// ErrConfiguration means the store was created in the other mode
	// (secure vs insecure) than the one requested.
	ErrConfiguration = errors.New("encryption mode does not match store")
	// ErrWrongKey means the secret key failed the stored round-trip check.
	ErrWrongKey = errors.New("wrong secret key")
	ErrClosed   = errors.New("engine closed")

	// ErrFatalSecurity means the key could not be kept in protected memory.
	// The process should exit.
	ErrFatalSecurity = vault.ErrFatalSecurity
	// ErrDecryption means a stored ciphertext failed authentication.
	ErrDecryption = crypto.ErrDecryption
)

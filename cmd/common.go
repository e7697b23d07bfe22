package cmd

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/illarion/haredb/internal/core"
	"github.com/illarion/haredb/internal/keyring"
	"github.com/illarion/haredb/internal/storage"
)

// ReadSecret reads a secret key from the terminal without echoing
func ReadSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("failed to read secret key: %w", err)
	}

	return secret, nil
}

// ResolveSecret finds the secret key for cfg.Path. The lookup order is
// HAREDB_SECRET_KEY, the OS keyring entry for the store, then a terminal
// prompt. A nil result selects insecure mode.
//
// Without prompt, a store that does not exist yet is created insecure.
// The result is wiped by Session.open; other callers must wipe it.
func ResolveSecret(cfg *Config, prompt bool) ([]byte, error) {
	if cfg.SecretKey != "" {
		return []byte(cfg.SecretKey), nil
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if prompt {
			return ReadSecret("New secret key (empty for insecure): ")
		}
		return nil, nil
	}

	meta, _, err := storage.Inspect(cfg.Path, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to inspect store: %w", err)
	}
	if meta == nil || !meta.Secure {
		if prompt {
			return ReadSecret("Secret key: ")
		}
		return nil, nil
	}

	if !prompt {
		if secret, err := keyring.GetSecret(meta.StoreID); err == nil {
			return []byte(secret), nil
		}
	}

	return ReadSecret("Secret key: ")
}

// HandleError prints err and exits
func HandleError(err error) {
	switch {
	case errors.Is(err, core.ErrFatalSecurity):
		fmt.Fprintf(os.Stderr, "Error: cannot protect the secret key in memory\n")
		fmt.Fprintf(os.Stderr, "%s\n", err)
	case errors.Is(err, core.ErrConfiguration):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Set HAREDB_SECRET_KEY for a secure store, unset it for an insecure one\n")
	case errors.Is(err, core.ErrWrongKey):
		fmt.Fprintf(os.Stderr, "Error: wrong secret key\n")
	case errors.Is(err, core.ErrDecryption):
		fmt.Fprintf(os.Stderr, "Error: stored value failed authentication\n")
	case errors.Is(err, storage.ErrUnknownDriver):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Supported drivers: %s, %s\n", storage.DriverBolt, storage.DriverBadger)
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

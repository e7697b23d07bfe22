package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/haredb/internal/crypto"
	"github.com/illarion/haredb/internal/keyring"
	"github.com/illarion/haredb/internal/storage"
)

// KeyringSave verifies the secret key and saves it to the OS keyring
func KeyringSave(g Globals) {
	cfg, err := LoadConfig(g)
	if err != nil {
		HandleError(err)
	}

	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		if secret, err = ReadSecret("Secret key: "); err != nil {
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(secret)

	if len(secret) == 0 {
		fmt.Fprintln(os.Stderr, "Error: empty secret key")
		os.Exit(1)
	}

	// core.New wipes its argument
	verify := make([]byte, len(secret))
	copy(verify, secret)

	s := openWithSecret(cfg, verify)
	storeID := s.Engine.Metadata().StoreID
	s.Close()

	if err := keyring.SaveSecret(storeID, string(secret)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Secret key saved to keyring")
}

// KeyringDelete removes the secret key from the OS keyring
func KeyringDelete(g Globals) {
	storeID, ok := keyringStoreID(g)
	if !ok {
		fmt.Println("No secret key stored in keyring")
		return
	}

	if err := keyring.DeleteSecret(storeID); err != nil {
		fmt.Println("No secret key stored in keyring")
		return
	}

	fmt.Println("Secret key removed from keyring")
}

// KeyringStatus checks if a secret key is stored in the keyring
func KeyringStatus(g Globals) {
	storeID, ok := keyringStoreID(g)
	if ok && keyring.HasSecret(storeID) {
		fmt.Println("Secret key: stored in keyring")
	} else {
		fmt.Println("Secret key: not stored")
	}
}

// keyringStoreID returns the store id of a secure store
func keyringStoreID(g Globals) (string, bool) {
	cfg, err := LoadConfig(g)
	if err != nil {
		HandleError(err)
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return "", false
	}

	meta, _, err := storage.Inspect(cfg.Path, cfg.StoreOptions())
	if err != nil {
		HandleError(err)
	}
	if meta == nil || !meta.Secure || meta.StoreID == "" {
		return "", false
	}
	return meta.StoreID, true
}

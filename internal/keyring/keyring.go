package keyring

import (
	"github.com/zalando/go-keyring"
)

const serviceName = "haredb"

// SaveSecret stores a secret key in the OS keyring under the store id
func SaveSecret(storeID string, secret string) error {
	return keyring.Set(serviceName, storeID, secret)
}

// GetSecret retrieves a secret key from the OS keyring
func GetSecret(storeID string) (string, error) {
	return keyring.Get(serviceName, storeID)
}

// DeleteSecret removes a secret key from the OS keyring
func DeleteSecret(storeID string) error {
	return keyring.Delete(serviceName, storeID)
}

// HasSecret checks if a secret key is stored in the keyring
func HasSecret(storeID string) bool {
	_, err := keyring.Get(serviceName, storeID)
	return err == nil
}

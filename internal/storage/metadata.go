package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Meta keys
const (
	MetaSecure     = "secure"
	MetaVersion    = "version"
	MetaCreated    = "created"
	MetaStoreID    = "store_id"
	MetaDriver     = "driver"
	MetaTestString = "secure_test_string"
)

// SchemaVersion is written to new stores
const SchemaVersion = "1"

// Metadata is the decoded meta table
type Metadata struct {
	Secure     bool
	Version    string
	Created    time.Time
	StoreID    string
	Driver     Driver
	TestString string // Ciphertext; empty for insecure stores
}

// ReadMetadata decodes the meta table. It returns nil, nil for a store that
// has never been initialized.
func ReadMetadata(s Store) (*Metadata, error) {
	secure, err := s.GetMeta(MetaSecure)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m := &Metadata{}
	if m.Secure, err = strconv.ParseBool(secure); err != nil {
		return nil, fmt.Errorf("invalid %s row %q", MetaSecure, secure)
	}

	if m.Version, err = optionalMeta(s, MetaVersion); err != nil {
		return nil, err
	}

	created, err := optionalMeta(s, MetaCreated)
	if err != nil {
		return nil, err
	}
	if created != "" {
		if m.Created, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("invalid %s row %q", MetaCreated, created)
		}
	}

	if m.StoreID, err = optionalMeta(s, MetaStoreID); err != nil {
		return nil, err
	}

	driver, err := optionalMeta(s, MetaDriver)
	if err != nil {
		return nil, err
	}
	m.Driver = Driver(driver)

	if m.TestString, err = optionalMeta(s, MetaTestString); err != nil {
		return nil, err
	}

	return m, nil
}

func optionalMeta(s Store, key string) (string, error) {
	v, err := s.GetMeta(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// InitMetadata writes the meta rows of a new store. The secure flag is
// written last so a crash midway leaves the store uninitialized.
func InitMetadata(s Store, secure bool, driver Driver) (*Metadata, error) {
	storeID, err := newStoreID()
	if err != nil {
		return nil, err
	}

	m := &Metadata{
		Secure:  secure,
		Version: SchemaVersion,
		Created: time.Now().UTC().Truncate(time.Second),
		StoreID: storeID,
		Driver:  driver,
	}

	rows := []struct{ key, value string }{
		{MetaVersion, m.Version},
		{MetaCreated, m.Created.Format(time.RFC3339)},
		{MetaStoreID, m.StoreID},
		{MetaDriver, string(m.Driver)},
		{MetaSecure, strconv.FormatBool(m.Secure)},
	}
	for _, row := range rows {
		if err := s.PutMeta(row.key, row.value); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", row.key, err)
		}
	}

	return m, nil
}

// GetOrCreateStoreID retrieves the store ID or generates a new one
func GetOrCreateStoreID(s Store) (string, error) {
	storeID, err := s.GetMeta(MetaStoreID)
	if err == nil {
		return storeID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	if storeID, err = newStoreID(); err != nil {
		return "", err
	}
	if err := s.PutMeta(MetaStoreID, storeID); err != nil {
		return "", err
	}
	return storeID, nil
}

func newStoreID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate store ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Inspect opens path read-only and returns its metadata and entry count
func Inspect(path string, opts Options) (*Metadata, int, error) {
	opts.ReadOnly = true
	s, err := Open(path, opts)
	if err != nil {
		return nil, 0, err
	}
	defer s.Close()

	m, err := ReadMetadata(s)
	if err != nil {
		return nil, 0, err
	}
	if m == nil {
		return nil, 0, nil
	}

	n, err := s.Count()
	if err != nil {
		return nil, 0, err
	}
	return m, n, nil
}

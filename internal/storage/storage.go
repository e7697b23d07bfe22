package storage

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Table names
const (
	KeyValueTable = "key_value"
	MetaTable     = "meta"
)

// Driver selects the on-disk engine.
type Driver string

const (
	DriverBolt   Driver = "bolt"
	DriverBadger Driver = "badger"
)

// DefaultLockTimeout bounds how long Open waits for another handle to let go
// of a bolt file.
const DefaultLockTimeout = 5 * time.Second

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrNotFound      = errors.New("not found")
)

// Store is a durable store handle. Handles are not shared: one owner at a time.
type Store interface {
	// EnsureSchema creates the key_value and meta tables if missing.
	EnsureSchema() error

	GetMeta(key string) (string, error)
	PutMeta(key, value string) error

	Put(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// ForEach calls fn for every key_value row.
	ForEach(fn func(key, value string) error) error
	Count() (int, error)

	// Compact rewrites the store to reclaim unused space.
	Compact() error

	Path() string
	Close() error
}

// Options configure Open.
type Options struct {
	Driver      Driver
	LockTimeout time.Duration
	ReadOnly    bool
	Logger      *zap.Logger
}

// Open opens or creates a store at path with the configured driver
func Open(path string, opts Options) (Store, error) {
	if opts.LockTimeout == 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch opts.Driver {
	case "", DriverBolt:
		return openBolt(path, opts)
	case DriverBadger:
		return openBadger(path, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// ParseDriver validates a driver name; empty means bolt
func ParseDriver(name string) (Driver, error) {
	switch Driver(name) {
	case "", DriverBolt:
		return DriverBolt, nil
	case DriverBadger:
		return DriverBadger, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}

package storage

import (
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	KeyValueBucket = []byte(KeyValueTable) // Entries, opaque text
	MetaBucket     = []byte(MetaTable)     // Mode, version, timestamps - unencrypted
)

// BoltStore provides BBolt-based storage for haredb
type BoltStore struct {
	db   *bolt.DB
	opts Options
}

func boltOptions(opts Options) *bolt.Options {
	return &bolt.Options{
		Timeout:  opts.LockTimeout,
		ReadOnly: opts.ReadOnly,
	}
}

// openBolt opens or creates a haredb bolt file
func openBolt(path string, opts Options) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, boltOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltStore{db: db, opts: opts}, nil
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the bucket structure if it does not exist yet
func (s *BoltStore) EnsureSchema() error {
	if s.opts.ReadOnly {
		return s.db.View(func(tx *bolt.Tx) error {
			if tx.Bucket(MetaBucket) == nil || tx.Bucket(KeyValueBucket) == nil {
				return fmt.Errorf("store not initialized")
			}
			return nil
		})
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{KeyValueBucket, MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// GetMeta retrieves a meta row
func (s *BoltStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(MetaBucket)
		if meta == nil {
			return fmt.Errorf("meta bucket: %w", ErrNotFound)
		}
		data := meta.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("meta %s: %w", key, ErrNotFound)
		}
		// string() copies; the slice is only valid during the transaction
		value = string(data)
		return nil
	})
	return value, err
}

// PutMeta stores a meta row
func (s *BoltStore) PutMeta(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(MetaBucket).Put([]byte(key), []byte(value))
	})
}

// Put upserts an entry
func (s *BoltStore) Put(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(KeyValueBucket).Put([]byte(key), []byte(value))
	})
}

// Delete removes an entry; bolt ignores absent keys
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(KeyValueBucket).Delete([]byte(key))
	})
}

// ForEach walks every entry in key order
func (s *BoltStore) ForEach(fn func(key, value string) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(KeyValueBucket)
		if entries == nil {
			return fmt.Errorf("key_value bucket not found")
		}
		return entries.ForEach(func(k, v []byte) error {
			return fn(string(k), string(v))
		})
	})
}

// Count returns the number of entries
func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(KeyValueBucket)
		if entries == nil {
			return nil
		}
		n = entries.Stats().KeyN
		return nil
	})
	return n, err
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after many deletes to reclaim disk space.
func (s *BoltStore) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	// Create new database
	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	// Reopen database
	s.db, err = bolt.Open(srcPath, 0600, boltOptions(s.opts))
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}

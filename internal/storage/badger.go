package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

var (
	keyValuePrefix = []byte(KeyValueTable + "/")
	metaPrefix     = []byte(MetaTable + "/")
	schemaMarker   = []byte(MetaTable + "/.schema")
)

// BadgerStore implements Store on a Badger directory.
type BadgerStore struct {
	db   *badger.DB
	path string
	opts Options
}

func openBadger(path string, opts Options) (*BadgerStore, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("badger: create dir: %w", err)
		}
	}

	bopts := badger.DefaultOptions(path).
		WithLogger(&badgerLogger{logger: opts.Logger.Sugar()}).
		WithSyncWrites(true).
		WithCompactL0OnClose(false).
		WithReadOnly(opts.ReadOnly)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	return &BadgerStore{db: db, path: path, opts: opts}, nil
}

func prefixed(prefix []byte, key string) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// Path returns the store directory
func (s *BadgerStore) Path() string {
	return s.path
}

// Close closes the database without compacting level 0
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// EnsureSchema writes the schema marker. Badger has no tables to create.
func (s *BadgerStore) EnsureSchema() error {
	if s.opts.ReadOnly {
		return s.db.View(func(txn *badger.Txn) error {
			if _, err := txn.Get(schemaMarker); err != nil {
				return fmt.Errorf("store not initialized: %w", err)
			}
			return nil
		})
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(schemaMarker, []byte("1"))
	})
}

func (s *BadgerStore) get(key []byte) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(data)
		return nil
	})
	return value, err
}

func (s *BadgerStore) set(key []byte, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(value))
	})
}

// GetMeta retrieves a meta row
func (s *BadgerStore) GetMeta(key string) (string, error) {
	value, err := s.get(prefixed(metaPrefix, key))
	if err != nil {
		return "", fmt.Errorf("meta %s: %w", key, err)
	}
	return value, nil
}

// PutMeta stores a meta row
func (s *BadgerStore) PutMeta(key, value string) error {
	return s.set(prefixed(metaPrefix, key), value)
}

// Put upserts an entry
func (s *BadgerStore) Put(key, value string) error {
	return s.set(prefixed(keyValuePrefix, key), value)
}

// Delete removes an entry. Badger writes a tombstone whether or not the key exists.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(prefixed(keyValuePrefix, key))
	})
}

// ForEach walks every entry in key order
func (s *BadgerStore) ForEach(fn func(key, value string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyValuePrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()[len(keyValuePrefix):]
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(key), string(value)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of entries
func (s *BadgerStore) Count() (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyValuePrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Compact flattens the LSM tree and garbage collects the value log
func (s *BadgerStore) Compact() error {
	if err := s.db.Flatten(1); err != nil {
		return fmt.Errorf("badger: flatten: %w", err)
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("badger: value log gc: %w", err)
		}
	}
}

// badgerLogger adapts zap to Badger's Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Package kvstore is a thin Badger v4 wrapper shared by the fingerprint
// store and the checkpoint store: both need a durable, single-writer,
// prefix-scannable key/value map and neither needs anything more than
// that from Badger's much larger surface.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrNotFound is returned by Get when key does not exist.
var ErrNotFound = errors.New("kvstore: not found")

// Store is a JSON-valued Badger-backed key/value map with prefix scanning.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger database at path. Pass an
// empty path to run fully in memory (useful for tests).
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunValueLogGC runs one pass of Badger's value-log garbage collection.
// badger.ErrNoRewrite is swallowed since it means "nothing to collect,"
// not a failure.
func (s *Store) RunValueLogGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Get unmarshals the value stored at key into dest.
func (s *Store) Get(_ context.Context, key string, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("kvstore: get %q: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// Put marshals value and stores it at key.
func (s *Store) Put(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: marshal %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// ScanFunc is called once per matching key during PrefixScan. Returning a
// non-nil error stops the scan and is returned from PrefixScan.
type ScanFunc func(key string, rawValue []byte) error

// PrefixScan iterates every key with the given prefix in key order,
// invoking fn with the raw (still-encoded) value for each.
func (s *Store) PrefixScan(_ context.Context, prefix string, fn ScanFunc) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePrefix removes every key with the given prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	err := s.PrefixScan(ctx, prefix, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

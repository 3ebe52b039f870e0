// Package repo provides the persistence layer: a badger-backed key-value
// store with one key namespace per entity, CBOR-encoded values, and
// in-memory equivalents for tests. Repositories copy entities on save and
// find, so callers never share mutable state through the store; changes are
// committed only by an explicit Save.
package repo

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no entity exists under the requested ID.
var ErrNotFound = errors.New("repo: not found")

// KVStore wraps a badger database shared by all repositories.
type KVStore struct {
	db *badger.DB
}

// OpenKVStore opens (or creates) the database at path.
func OpenKVStore(path string, log zerolog.Logger) (*KVStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("repo: open badger at %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("opened key-value store")
	return &KVStore{db: db}, nil
}

// Put stores value under key.
func (s *KVStore) Put(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get returns the value stored under key, or ErrNotFound.
func (s *KVStore) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KVStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// ListPrefix returns all values whose keys start with prefix.
func (s *KVStore) ListPrefix(prefix string) ([][]byte, error) {
	var out [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, value)
		}
		return nil
	})
	return out, err
}

// KeysWithPrefix returns all keys that start with prefix.
func (s *KVStore) KeysWithPrefix(prefix string) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return out, err
}

// Close closes the underlying database.
func (s *KVStore) Close() error {
	return s.db.Close()
}

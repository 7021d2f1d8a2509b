// Package store persists program accounts in BadgerDB. Every instruction
// runs inside one Update so its writes land together or not at all.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/compto-com/comptoken-program/pkg/core/types"
)

var (
	ErrNotFound = errors.New("account not found in store")
)

// Keys:
// Global data:  "program:global" -> encoded distribution state
// User data:    "user:<hex pubkey>" -> encoded ledger
// Balance:      "token:balance:<hex pubkey>" -> u64 little-endian
// Supply:       "token:supply" -> u64 little-endian

// GlobalKey is the key of the program's global data account.
var GlobalKey = []byte("program:global")

// UserKey returns the key of owner's user data account.
func UserKey(owner types.Pubkey) []byte {
	return []byte(fmt.Sprintf("user:%x", owner[:]))
}

// BadgerStore is an account store backed by BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates or opens a BadgerDB store at the given path.
// If path is empty, it opens an in-memory store (for testing).
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// Reduce logging noise
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Update runs fn in a read-write transaction. If fn returns an error nothing
// it wrote is kept.
func (s *BadgerStore) Update(fn func(*Txn) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&Txn{txn: txn})
	})
}

// View runs fn in a read-only transaction.
func (s *BadgerStore) View(fn func(*Txn) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Txn{txn: txn})
	})
}

// Txn is a store transaction.
type Txn struct {
	txn *badger.Txn
}

// Get returns a copy of the value stored at key, or ErrNotFound.
func (t *Txn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Has reports whether key exists.
func (t *Txn) Has(key []byte) (bool, error) {
	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Set stores val at key.
func (t *Txn) Set(key, val []byte) error {
	return t.txn.Set(key, val)
}

// Count returns the number of keys starting with prefix.
func (t *Txn) Count(prefix []byte) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

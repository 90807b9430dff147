// Package badgerstore persists engine snapshots in an embedded BadgerDB,
// the durable on-disk analog of per-origin browser storage.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/orchids/sandtube/internal/domain"
)

type Store struct {
	db *badger.DB
}

// Open opens (or creates) a database at path. An empty path opens an
// in-memory database.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrSnapshotNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get snapshot: %w", err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return fmt.Errorf("failed to set snapshot: %w", err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
